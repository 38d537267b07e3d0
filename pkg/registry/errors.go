/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrSpawn          = errors.New("failed to spawn process")
	ErrNilProcess     = errors.New("spawn returned no process")
)

// SpawnError reports that the external command for Key could not be launched.
// The registry holds no entry for Key after a SpawnError.
type SpawnError struct {
	Key Key
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrSpawn, e.Key, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func (*SpawnError) Is(target error) bool {
	return target == ErrSpawn
}
