package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSafetyNet_BackupAndRestore_FreshBackup(t *testing.T) {
	log := &eventLog{}
	repo := &mockBackupRepository{log: log}
	net := NewSafetyNet(repo, "Orders", nil)

	if err := net.BackupAndRestore(context.Background()); err != nil {
		t.Fatalf("BackupAndRestore failed: %v", err)
	}

	want := []string{"clone Orders -> Orders_MigrationBackup"}
	if !reflect.DeepEqual(log.events, want) {
		t.Errorf("unexpected events: %v", log.events)
	}
	if !repo.existing["Orders_MigrationBackup"] {
		t.Error("expected the backup to exist afterwards")
	}
}

func TestSafetyNet_BackupAndRestore_LiveDatabaseIsNotABackup(t *testing.T) {
	log := &eventLog{}
	// 対象データベースが存在しても、バックアップが無ければ復元しない
	repo := &mockBackupRepository{log: log, existing: map[string]bool{"Orders": true}}
	net := NewSafetyNet(repo, "Orders", nil)

	if err := net.BackupAndRestore(context.Background()); err != nil {
		t.Fatalf("BackupAndRestore failed: %v", err)
	}
	if len(log.events) != 1 || log.events[0] != "clone Orders -> Orders_MigrationBackup" {
		t.Errorf("unexpected events: %v", log.events)
	}
}

func TestSafetyNet_BackupAndRestore_CloneFailure(t *testing.T) {
	cause := errors.New("disk full")
	net := NewSafetyNet(&mockBackupRepository{log: &eventLog{}, cloneErr: cause}, "Orders", nil)

	if err := net.BackupAndRestore(context.Background()); !errors.Is(err, cause) {
		t.Errorf("expected clone failure, got %v", err)
	}
}
