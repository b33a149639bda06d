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


package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Parameter bounds for query routing.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinResults     = 1
	MaxResults     = 20
	MaxQuestionLen = 4096
	MaxStoreIDLen  = 64
)

// storeIDPattern restricts store identifiers to a filesystem-safe charset.
// Path separators and dot sequences are excluded so an id can never escape
// the storage root once joined to it.
var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateStoreID validates a store identifier before any filesystem path is
// formed from it.
//
// Validation rules:
//   - must not be empty
//   - at most MaxStoreIDLen characters
//   - alphanumeric, underscore and hyphen only, starting with an alphanumeric
func ValidateStoreID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, ErrEmptyStoreID)
	}
	if len(id) > MaxStoreIDLen {
		return fmt.Errorf("%w: store id exceeds %d characters", ErrInvalidParameter, MaxStoreIDLen)
	}
	if !storeIDPattern.MatchString(id) {
		return fmt.Errorf("%w: store id %q contains disallowed characters", ErrInvalidParameter, id)
	}
	return nil
}

// ValidateTemperature checks that a sampling temperature is within [0, 2].
// Out-of-range values are rejected, never silently clamped.
func ValidateTemperature(temperature float64) error {
	if temperature < MinTemperature || temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [%.0f, %.0f]",
			ErrInvalidParameter, temperature, MinTemperature, MaxTemperature)
	}
	return nil
}

// ValidateResultCount checks that a retrieval result count is within [1, 20].
func ValidateResultCount(count int) error {
	if count < MinResults || count > MaxResults {
		return fmt.Errorf("%w: result count %d outside [%d, %d]",
			ErrInvalidParameter, count, MinResults, MaxResults)
	}
	return nil
}

// ValidateQuestion checks that query text is non-blank and within bounds.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, ErrEmptyQuestion)
	}
	if len(question) > MaxQuestionLen {
		return fmt.Errorf("%w: question exceeds %d bytes", ErrInvalidParameter, MaxQuestionLen)
	}
	return nil
}

// ValidateRequestKind checks that a request kind has a known value.
func ValidateRequestKind(kind RequestKind) error {
	if kind != RequestKindIngest && kind != RequestKindQuery {
		return fmt.Errorf("%w: request kind %d", ErrInvalidParameter, kind)
	}
	return nil
}
