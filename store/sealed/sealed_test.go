package sealed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/status-im/promptctl/store"
	"github.com/status-im/promptctl/store/memory"
	"github.com/status-im/promptctl/store/mock"
)

func testConfig(passphrase string) *store.SealedConfig {
	return &store.SealedConfig{
		Enabled:    true,
		Passphrase: passphrase,
		Argon2:     store.Argon2Config{MemoryKB: 1024, Time: 1, Threads: 1},
	}
}

func newInner(t *testing.T) *memory.BigCacheStore {
	t.Helper()
	inner, err := memory.NewBigCacheStore(&store.BigCacheConfig{Size: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close() })
	return inner
}

func TestNew_RequiresPassphrase(t *testing.T) {
	_, err := New(newInner(t), testConfig(""))
	assert.Error(t, err)
}

func TestSealedStore_RoundTrip(t *testing.T) {
	inner := newInner(t)
	s, err := New(inner, testConfig("correct horse"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "credentials", []byte(`{"openai":"sk-test123456789"}`)))

	raw, found, err := inner.Read(ctx, "credentials")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(raw), "sk-test123456789", "secret must not be stored in clear")

	plain, found, err := s.Read(ctx, "credentials")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"openai":"sk-test123456789"}`, string(plain))
}

func TestSealedStore_WrongPassphrase(t *testing.T) {
	inner := newInner(t)
	ctx := context.Background()

	writer, err := New(inner, testConfig("right"))
	require.NoError(t, err)
	require.NoError(t, writer.Write(ctx, "credentials", []byte("secret")))

	reader, err := New(inner, testConfig("wrong"))
	require.NoError(t, err)

	_, found, err := reader.Read(ctx, "credentials")
	assert.False(t, found)
	assert.True(t, errors.Is(err, ErrWrongPassphrase))
}

func TestSealedStore_KeyBoundToDocument(t *testing.T) {
	inner := newInner(t)
	ctx := context.Background()
	s, err := New(inner, testConfig("pass"))
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "a", []byte("secret")))
	raw, _, _ := inner.Read(ctx, "a")
	require.NoError(t, inner.Write(ctx, "b", raw))

	_, _, err = s.Read(ctx, "b")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSealedStore_Missing(t *testing.T) {
	s, err := New(newInner(t), testConfig("pass"))
	require.NoError(t, err)

	data, found, err := s.Read(context.Background(), "credentials")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)
}

func TestSealedStore_CorruptEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := mock.NewMockStore(ctrl)
	s, err := New(inner, testConfig("pass"))
	require.NoError(t, err)

	inner.EXPECT().Read(gomock.Any(), "credentials").Return([]byte("not json"), true, nil)
	_, _, err = s.Read(context.Background(), "credentials")
	assert.Error(t, err)

	inner.EXPECT().Read(gomock.Any(), "credentials").Return([]byte(`{"v":2,"kdf":"scrypt"}`), true, nil)
	_, _, err = s.Read(context.Background(), "credentials")
	assert.ErrorContains(t, err, "unsupported sealed document")

	for _, params := range []string{
		`{}`,
		`{"memory_kb":1024,"time":1,"threads":0}`,
		`{"memory_kb":1024,"time":1,"threads":300}`,
		`{"memory_kb":4,"time":1,"threads":1}`,
		`{"memory_kb":1073741824,"time":1,"threads":1}`,
	} {
		inner.EXPECT().Read(gomock.Any(), "credentials").
			Return([]byte(`{"v":1,"kdf":"argon2id","params":`+params+`,"salt":"AAAA","nonce":"AAAA","data":"AAAA"}`), true, nil)
		assert.NotPanics(t, func() {
			_, _, err = s.Read(context.Background(), "credentials")
		}, params)
		assert.ErrorIs(t, err, ErrCorrupted, params)
	}
}

func TestNew_RejectsBadArgon2Params(t *testing.T) {
	cfg := testConfig("pass")
	cfg.Argon2.Threads = -1
	_, err := New(newInner(t), cfg)
	assert.ErrorContains(t, err, "argon2 threads")
}

func TestSealedStore_DeleteDelegates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := mock.NewMockStore(ctrl)
	s, err := New(inner, testConfig("pass"))
	require.NoError(t, err)

	inner.EXPECT().Delete(gomock.Any(), "credentials").Return(nil)
	assert.NoError(t, s.Delete(context.Background(), "credentials"))
}
