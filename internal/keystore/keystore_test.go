package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
)

// cheap keeps argon2 fast in tests.
var cheap = WithParams(Params{Time: 1, Memory: 1024, Threads: 1})

func Test_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "agent.json")
	id := identity.MustGenerate()

	require.NoError(t, Save(path, id, "correct horse", cheap))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())

	loaded, err := Load(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id.DID(), loaded.DID())
	assert.Equal(t, id.Seed(), loaded.Seed())

	did, err := DID(path)
	require.NoError(t, err)
	assert.Equal(t, id.DID(), did)
	assert.True(t, Exists(path))
}

func Test_SeedIsNotStoredInClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	id := identity.MustGenerate()
	require.NoError(t, Save(path, id, "pw", cheap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var f file
	require.NoError(t, json.Unmarshal(data, &f))
	assert.NotContains(t, string(f.Ciphertext), string(id.Seed()))
	assert.Equal(t, "argon2id", f.KDF)
}

func Test_Load_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, Save(path, identity.MustGenerate(), "right", cheap))

	_, err := Load(path, "wrong")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Load_SwappedDID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, Save(path, identity.MustGenerate(), "pw", cheap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var f file
	require.NoError(t, json.Unmarshal(data, &f))
	f.DID = identity.MustGenerate().DID()
	data, err = json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, FileMode))

	_, err = Load(path, "pw")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Load_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	_, err := Load(path, "pw")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.False(t, Exists(path))
}

func Test_Load_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":9,"kdf":"scrypt"}`), FileMode))
	_, err := Load(path, "pw")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_Load_ParamsOutOfRange(t *testing.T) {
	tests := map[string]func(*file){
		"zero time":      func(f *file) { f.Params.Time = 0 },
		"zero threads":   func(f *file) { f.Params.Threads = 0 },
		"huge time":      func(f *file) { f.Params.Time = 1 << 20 },
		"huge memory":    func(f *file) { f.Params.Memory = 1 << 31 },
		"memory too low": func(f *file) { f.Params.Memory, f.Params.Threads = 8, 4 },
		"short salt":     func(f *file) { f.Salt = f.Salt[:4] },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "agent.json")
			require.NoError(t, Save(path, identity.MustGenerate(), "pw", cheap))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var f file
			require.NoError(t, json.Unmarshal(data, &f))
			mutate(&f)
			data, err = json.Marshal(f)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, data, FileMode))

			require.NotPanics(t, func() {
				_, err = Load(path, "pw")
			})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
		})
	}
}

func Test_Save_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	assert.True(t, dErrors.HasCode(Save(path, nil, "pw"), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(Save(path, identity.MustGenerate(), ""), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(Save(path, identity.MustGenerate(), "pw", WithParams(Params{})), dErrors.CodeValidation))
	assert.False(t, Exists(path))
}

func Test_Save_TightensExistingMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	require.NoError(t, Save(path, identity.MustGenerate(), "pw", cheap))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())
}
