package accounts

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "accounts.yaml"))
}

func TestUserBindOverwritesAndPersists(t *testing.T) {
	store := newTestStore(t)

	first := Account{AppID: "wx111", Secret: "secret-one"}
	if err := store.SaveUser("user-1", "测试号", first); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
	second := Account{AppID: "wx222", Secret: "secret-two"}
	if err := store.SaveUser("user-1", "测试号", second); err != nil {
		t.Fatalf("SaveUser() overwrite error = %v", err)
	}

	// Re-open from disk to prove the mutation persisted.
	reopened := NewStore(store.path)
	got, ok, err := reopened.GetUser("user-1", "测试号")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !ok || got.AppID != "wx222" {
		t.Fatalf("GetUser() = %#v, %v; want the overwritten account", got, ok)
	}
}

func TestUserAccountsAreScopedByUser(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveUser("user-1", "号", Account{AppID: "wx1", Secret: "s1"}); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
	if _, ok, err := store.GetUser("user-2", "号"); err != nil || ok {
		t.Fatalf("GetUser() leaked across users: ok=%v err=%v", ok, err)
	}
	listed, err := store.ListUser("user-1")
	if err != nil {
		t.Fatalf("ListUser() error = %v", err)
	}
	if len(listed) != 1 || listed["号"].AppID != "wx1" {
		t.Fatalf("ListUser() = %#v", listed)
	}
}

func TestNamedConfigLifecycle(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveNamed("生产号", Account{AppID: "wx9", Secret: "s9", Token: "tok"}); err != nil {
		t.Fatalf("SaveNamed() error = %v", err)
	}
	if err := store.SaveNamed("备用号", Account{AppID: "wx8", Secret: "s8"}); err != nil {
		t.Fatalf("SaveNamed() error = %v", err)
	}

	names, err := store.ListNamed()
	if err != nil {
		t.Fatalf("ListNamed() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("ListNamed() = %v", names)
	}

	got, ok, err := store.GetNamed("生产号")
	if err != nil || !ok || got.Token != "tok" {
		t.Fatalf("GetNamed() = %#v, %v, %v", got, ok, err)
	}

	deleted, err := store.DeleteNamed("生产号")
	if err != nil || !deleted {
		t.Fatalf("DeleteNamed() = %v, %v", deleted, err)
	}
	if deleted, _ := store.DeleteNamed("生产号"); deleted {
		t.Fatalf("DeleteNamed() reported success for a missing config")
	}
}

func TestSaveRejectsIncompleteAccounts(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveUser("user-1", "号", Account{AppID: "wx1"}); err == nil {
		t.Fatalf("SaveUser() accepted an account without a secret")
	}
	if err := store.SaveNamed("", Account{AppID: "wx1", Secret: "s"}); err == nil {
		t.Fatalf("SaveNamed() accepted an empty name")
	}
}

func TestAllUsersSnapshot(t *testing.T) {
	store := newTestStore(t)
	_ = store.SaveUser("user-1", "甲", Account{AppID: "wx1", Secret: "s1"})
	_ = store.SaveUser("user-2", "乙", Account{AppID: "wx2", Secret: "s2"})

	all, err := store.AllUsers()
	if err != nil {
		t.Fatalf("AllUsers() error = %v", err)
	}
	if len(all) != 2 || all["user-1"]["甲"].AppID != "wx1" || all["user-2"]["乙"].AppID != "wx2" {
		t.Fatalf("AllUsers() = %#v", all)
	}
}
