package authserver

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStoreWithInterval(time.Hour)
	t.Cleanup(store.Stop)
	return store
}

func TestStoreClients(t *testing.T) {
	store := newTestStore(t)

	client := &Client{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURIs: []string{"http://localhost:3000/callback"},
	}

	if err := store.SaveClient(client); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}

	got, err := store.GetClient("client-1")
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if got.ClientSecret != "secret-1" {
		t.Errorf("expected secret %q, got %q", "secret-1", got.ClientSecret)
	}

	if _, err := store.GetClient("unknown"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}

	if err := store.SaveClient(&Client{}); err == nil {
		t.Error("expected error saving client with empty ID")
	}

	if store.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", store.ClientCount())
	}
}

func TestConsumeAuthorizationCode(t *testing.T) {
	tests := []struct {
		name    string
		code    *AuthorizationCode
		consume string
		check   func(*AuthorizationCode) error
		wantErr error
	}{
		{
			name: "valid code consumed",
			code: &AuthorizationCode{
				Code:      "code-valid",
				ClientID:  "client-1",
				ExpiresAt: time.Now().Add(time.Minute),
			},
			consume: "code-valid",
		},
		{
			name: "unknown code",
			code: &AuthorizationCode{
				Code:      "code-other",
				ExpiresAt: time.Now().Add(time.Minute),
			},
			consume: "code-missing",
			wantErr: ErrCodeNotFound,
		},
		{
			name: "expired code",
			code: &AuthorizationCode{
				Code:      "code-expired",
				ExpiresAt: time.Now().Add(-time.Minute),
			},
			consume: "code-expired",
			wantErr: ErrCodeExpired,
		},
		{
			name: "check failure propagates",
			code: &AuthorizationCode{
				Code:      "code-checked",
				ExpiresAt: time.Now().Add(time.Minute),
			},
			consume: "code-checked",
			check: func(*AuthorizationCode) error {
				return errors.New("validation failed")
			},
			wantErr: errors.New("validation failed"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			if err := store.SaveAuthorizationCode(tt.code); err != nil {
				t.Fatalf("SaveAuthorizationCode failed: %v", err)
			}

			consumed, err := store.ConsumeAuthorizationCode(tt.consume, tt.check)
			if tt.wantErr != nil {
				if err == nil || err.Error() != tt.wantErr.Error() {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ConsumeAuthorizationCode failed: %v", err)
			}
			if !consumed.Used {
				t.Error("expected returned code to be marked used")
			}
		})
	}
}

func TestConsumeAuthorizationCodeReplay(t *testing.T) {
	store := newTestStore(t)

	code := &AuthorizationCode{
		Code:      "code-once",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := store.SaveAuthorizationCode(code); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	if _, err := store.ConsumeAuthorizationCode("code-once", nil); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if _, err := store.ConsumeAuthorizationCode("code-once", nil); !errors.Is(err, ErrCodeUsed) {
		t.Errorf("expected ErrCodeUsed on replay, got %v", err)
	}
}

func TestConsumeAuthorizationCodeCheckFailureLeavesCodeUsable(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveAuthorizationCode(&AuthorizationCode{
		Code:      "code-retry",
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	_, err := store.ConsumeAuthorizationCode("code-retry", func(*AuthorizationCode) error {
		return errors.New("wrong verifier")
	})
	if err == nil {
		t.Fatal("expected check failure")
	}

	// A failed check must not burn the code.
	if _, err := store.ConsumeAuthorizationCode("code-retry", nil); err != nil {
		t.Errorf("expected code to remain consumable after failed check, got %v", err)
	}
}

func TestConsumeAuthorizationCodeConcurrent(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveAuthorizationCode(&AuthorizationCode{
		Code:      "code-race",
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	const attempts = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	usedErrs := 0

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := store.ConsumeAuthorizationCode("code-race", nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCodeUsed):
				usedErrs++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful consume, got %d", successes)
	}
	if usedErrs != attempts-1 {
		t.Errorf("expected %d ErrCodeUsed, got %d", attempts-1, usedErrs)
	}
}

func TestAccessTokens(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveAccessToken(&AccessToken{
		Token:     "token-valid",
		ClientID:  "client-1",
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("SaveAccessToken failed: %v", err)
	}
	if err := store.SaveAccessToken(&AccessToken{
		Token:     "token-expired",
		ClientID:  "client-1",
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("SaveAccessToken failed: %v", err)
	}

	if _, err := store.GetAccessToken("token-valid"); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}
	if _, err := store.GetAccessToken("token-expired"); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := store.GetAccessToken("token-unknown"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestCleanupSweep(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveAuthorizationCode(&AuthorizationCode{
		Code:      "code-stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}
	if err := store.SaveAuthorizationCode(&AuthorizationCode{
		Code:      "code-fresh",
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	store.cleanup()

	if store.CodeCount() != 1 {
		t.Errorf("expected 1 code after sweep, got %d", store.CodeCount())
	}
	if _, err := store.ConsumeAuthorizationCode("code-stale", nil); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("expected swept code to be gone, got %v", err)
	}
}
