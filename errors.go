// Copyright 2024 The Cockroach Authors
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

package openhash

import "github.com/cockroachdb/errors"

// ErrInvalidKey is returned when a caller passes a key that the container
// reserves as its vacant or tombstone sentinel. The container is left
// unchanged.
var ErrInvalidKey = errors.New("openhash: invalid key")

// ErrCapacityOverflow is returned when a requested capacity is negative or
// cannot be addressed.
var ErrCapacityOverflow = errors.New("openhash: capacity overflow")
