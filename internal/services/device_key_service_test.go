package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDeviceKeyService_CreateAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	keys := NewDeviceKeyService(db)

	ios, err := keys.Create(ctx, "ios-app")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(ios.Secret) != 2*deviceKeyBytes {
		t.Errorf("secret length = %d, want %d", len(ios.Secret), 2*deviceKeyBytes)
	}
	android, err := keys.Create(ctx, "android-app")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ios.Secret == android.Secret {
		t.Fatal("two keys share a secret")
	}

	got, err := keys.Authenticate(ctx, android.Secret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Name != "android-app" || got.LastUsedAt == nil {
		t.Errorf("Authenticate = %+v, want android-app with LastUsedAt", got)
	}

	for _, secret := range []string{"", "nope", ios.Secret[:10]} {
		if _, err := keys.Authenticate(ctx, secret); !errors.Is(err, ErrDeviceKeyNotFound) {
			t.Errorf("Authenticate(%q) err = %v, want ErrDeviceKeyNotFound", secret, err)
		}
	}

	list, err := keys.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "android-app" || list[1].Name != "ios-app" {
		t.Errorf("List = %+v, want android-app, ios-app", list)
	}
}

func TestDeviceKeyService_CreateValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	keys := NewDeviceKeyService(db)

	for _, name := range []string{"", "has space", "semi;colon", strings.Repeat("a", 101)} {
		if _, err := keys.Create(ctx, name); !errors.Is(err, ErrInvalidKeyName) {
			t.Errorf("Create(%q) err = %v, want ErrInvalidKeyName", name, err)
		}
	}

	if _, err := keys.Create(ctx, "kiosk_v2.1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := keys.Create(ctx, "kiosk_v2.1"); !errors.Is(err, ErrDeviceKeyExists) {
		t.Errorf("duplicate Create err = %v, want ErrDeviceKeyExists", err)
	}
}

func TestDeviceKeyService_RevokeAndReset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	keys := NewDeviceKeyService(db)

	old, err := keys.Create(ctx, "field-tablets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := keys.Revoke(ctx, "field-tablets"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := keys.Authenticate(ctx, old.Secret); !errors.Is(err, ErrDeviceKeyRevoked) {
		t.Errorf("revoked Authenticate err = %v, want ErrDeviceKeyRevoked", err)
	}
	if err := keys.Revoke(ctx, "missing"); !errors.Is(err, ErrDeviceKeyNotFound) {
		t.Errorf("Revoke(missing) err = %v, want ErrDeviceKeyNotFound", err)
	}

	reset, err := keys.Reset(ctx, "field-tablets")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Secret == old.Secret || !reset.Active() {
		t.Errorf("Reset = %+v, want a new active secret", reset)
	}
	if _, err := keys.Authenticate(ctx, old.Secret); !errors.Is(err, ErrDeviceKeyNotFound) {
		t.Errorf("old secret err = %v, want ErrDeviceKeyNotFound", err)
	}
	if _, err := keys.Authenticate(ctx, reset.Secret); err != nil {
		t.Errorf("new secret rejected: %v", err)
	}
}

func TestDeviceKeyService_LastUsedWrittenOncePerMinute(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	keys := NewDeviceKeyService(db)

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	keys.now = func() time.Time { return clock }

	key, err := keys.Create(ctx, "watch")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := keys.Authenticate(ctx, key.Secret)
	clock = clock.Add(30 * time.Second)
	second, _ := keys.Authenticate(ctx, key.Secret)
	if !second.LastUsedAt.Equal(*first.LastUsedAt) {
		t.Errorf("LastUsedAt moved within a minute: %v -> %v", first.LastUsedAt, second.LastUsedAt)
	}

	clock = clock.Add(time.Minute)
	third, _ := keys.Authenticate(ctx, key.Secret)
	if !third.LastUsedAt.Equal(clock) {
		t.Errorf("LastUsedAt = %v, want %v", third.LastUsedAt, clock)
	}
}

func TestDeviceKeyService_EnsureDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("generates on first start", func(t *testing.T) {
		keys := NewDeviceKeyService(setupTestDB(t))

		key, err := keys.EnsureDefault(ctx, filepath.Join(t.TempDir(), LegacyDeviceKeyFile))
		if err != nil {
			t.Fatalf("EnsureDefault: %v", err)
		}
		if key == nil || key.Name != DefaultDeviceKeyName || key.Secret == "" {
			t.Fatalf("EnsureDefault = %+v", key)
		}

		again, err := keys.EnsureDefault(ctx, "")
		if err != nil || again.Secret != key.Secret {
			t.Errorf("second EnsureDefault = %+v, %v; want the same key", again, err)
		}
	})

	t.Run("imports the legacy key file", func(t *testing.T) {
		keys := NewDeviceKeyService(setupTestDB(t))
		legacy := filepath.Join(t.TempDir(), LegacyDeviceKeyFile)
		if err := os.WriteFile(legacy, []byte("  legacy-secret\n"), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		key, err := keys.EnsureDefault(ctx, legacy)
		if err != nil {
			t.Fatalf("EnsureDefault: %v", err)
		}
		if key.Secret != "legacy-secret" {
			t.Errorf("secret = %q, want legacy-secret", key.Secret)
		}
		if _, err := keys.Authenticate(ctx, "legacy-secret"); err != nil {
			t.Errorf("legacy secret rejected: %v", err)
		}
	})

	t.Run("leaves existing keys alone", func(t *testing.T) {
		keys := NewDeviceKeyService(setupTestDB(t))
		if _, err := keys.Create(ctx, "fleet"); err != nil {
			t.Fatalf("Create: %v", err)
		}

		key, err := keys.EnsureDefault(ctx, "")
		if err != nil || key != nil {
			t.Errorf("EnsureDefault = %+v, %v; want nil, nil", key, err)
		}
		list, _ := keys.List(ctx)
		if len(list) != 1 {
			t.Errorf("EnsureDefault created a key next to existing ones: %+v", list)
		}
	})
}
