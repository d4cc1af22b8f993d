/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	applog "pagecraft/internal/log"
)

// ScheduleBackupPruning runs PruneBackups for root on the cron schedule
// spec, keeping the newest keep backups. The returned stop function waits
// for a running prune to finish.
func ScheduleBackupPruning(root, spec string, keep int) (stop func(), err error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "prune").With(slog.String("root", root))
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		n, err := PruneBackups(root, keep)
		if err != nil {
			l.Warn("prune backups failed", slog.Any("err", err))
			return
		}
		if n > 0 {
			l.Info("pruned backups", slog.Int("removed", n), slog.Int("kept", keep))
		}
	}); err != nil {
		return nil, fmt.Errorf("backup prune schedule %q: %w", spec, err)
	}
	c.Start()
	l.Debug("backup pruning scheduled", slog.String("spec", spec))
	return func() { <-c.Stop().Done() }, nil
}
