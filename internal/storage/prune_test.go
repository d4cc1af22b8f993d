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
	"path/filepath"
	"testing"
	"time"
)

func TestScheduleBackupPruningRuns(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	bdir := filepath.Join(root, BackupsDirName)
	for _, stamp := range []string{"20240101-000000.000", "20240102-000000.000", "20240103-000000.000"} {
		if err := copyFile(ph.ManifestPath, filepath.Join(bdir, ManifestFileName+"."+stamp+".bak")); err != nil {
			t.Fatal(err)
		}
	}
	stop, err := ScheduleBackupPruning(root, "@every 1s", 2)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	defer stop()
	deadline := time.Now().Add(5 * time.Second)
	for {
		names, _ := backupNames(root)
		if len(names) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("backups not pruned, still %d", len(names))
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestScheduleBackupPruningRejectsBadInput(t *testing.T) {
	root := t.TempDir()
	if _, err := ScheduleBackupPruning(root, "not a schedule", 5); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
	if _, err := ScheduleBackupPruning(root, "@hourly", 0); err == nil {
		t.Fatalf("expected error for keep 0")
	}
}
