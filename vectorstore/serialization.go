// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vectorstore

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
)

// blobVersion is the on-disk format version of the index blob.
const blobVersion = 1

var (
	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
	vectorsMUS      = ord.NewSliceSer[[]float32](float32SliceMUS)
)

// MarshalIndex serializes the vector index blob: version, dimension, vectors.
// The blob is opaque to callers; chunk metadata is persisted separately as
// structured JSON.
func MarshalIndex(dim int, vectors [][]float32) []byte {
	size := varint.PositiveInt.Size(blobVersion)
	size += varint.PositiveInt.Size(dim)
	size += vectorsMUS.Size(vectors)

	buf := make([]byte, size)
	n := varint.PositiveInt.Marshal(blobVersion, buf)
	n += varint.PositiveInt.Marshal(dim, buf[n:])
	vectorsMUS.Marshal(vectors, buf[n:])
	return buf
}

// UnmarshalIndex deserializes a vector index blob, validating the format
// version and that every vector matches the recorded dimension.
func UnmarshalIndex(data []byte) (dim int, vectors [][]float32, err error) {
	version, n, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: unreadable index version", core.ErrCorruptStore)
	}
	if version != blobVersion {
		return 0, nil, fmt.Errorf("%w: unsupported index version %d", core.ErrCorruptStore, version)
	}

	var n1 int
	dim, n1, err = varint.PositiveInt.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return 0, nil, fmt.Errorf("%w: unreadable index dimension", core.ErrCorruptStore)
	}

	vectors, _, err = vectorsMUS.Unmarshal(data[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: unreadable index vectors", core.ErrCorruptStore)
	}

	for _, vector := range vectors {
		if len(vector) != dim {
			return 0, nil, fmt.Errorf("%w: vector dimension %d, index dimension %d",
				core.ErrCorruptStore, len(vector), dim)
		}
	}

	return dim, vectors, nil
}
