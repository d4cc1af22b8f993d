/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Run when the binary was built without the desktop UI.
var ErrUnavailable = errors.New("desktop UI not available in this build")

// unavailable wraps ErrUnavailable with a rebuild hint for projectDir.
func unavailable(reason, projectDir string) error {
	if projectDir == "" {
		projectDir = "[projectDir]"
	}
	return fmt.Errorf("%w: %s. Rebuild with: go run -tags fyne ./cmd/pagecraft ui %s, or inspect it headless with: pagecraft open %s",
		ErrUnavailable, reason, projectDir, projectDir)
}
