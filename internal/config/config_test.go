package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(KeyBucketName, "")
	t.Setenv(KeyIDIndexName, "")

	cfg := Load()
	assert.Empty(t, cfg.BucketName)
	assert.Equal(t, "id", cfg.IDIndexName)
	assert.Equal(t, ".completedmultipartupload", cfg.CompletionSuffix)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(KeyBucketName, "lfs-objects")
	t.Setenv(KeyTableName, "lfs-locks")
	t.Setenv(KeyIDIndexName, "by-id")
	t.Setenv(KeyS3UseSSL, "false")
	t.Setenv(KeyUsers, "alice:pw")

	cfg := Load()
	assert.Equal(t, "lfs-objects", cfg.BucketName)
	assert.Equal(t, "lfs-locks", cfg.TableName)
	assert.Equal(t, "by-id", cfg.IDIndexName)
	assert.False(t, cfg.S3UseSSL)
	assert.Equal(t, "alice:pw", cfg.Users)
}

func TestOverride(t *testing.T) {
	t.Setenv(KeyBucketName, "from-env")

	v := NewViper()
	v.Set(KeyBucketName, "from-flag")
	assert.Equal(t, "from-flag", FromViper(v).BucketName)
}

func TestRequire(t *testing.T) {
	cfg := &Config{TableName: "locks"}

	require.NoError(t, cfg.Require(KeyTableName))

	err := cfg.Require(KeyBucketName, KeyTableName, KeyUserPoolID)
	require.Error(t, err)
	assert.Equal(t, "environment variable not set: BUCKET_NAME, USER_POOL_ID", err.Error())
}

func TestSigning(t *testing.T) {
	t.Setenv(KeySigningRoleARN, "arn:aws:iam::123456789012:role/lfs-presign")
	t.Setenv(KeySigningSessionSeconds, "")

	signing := Load().Signing()
	assert.Equal(t, "arn:aws:iam::123456789012:role/lfs-presign", signing.RoleARN)
	assert.Equal(t, time.Hour, signing.SessionDuration)
	assert.True(t, signing.Enabled())

	t.Setenv(KeySigningSessionSeconds, "86400")
	assert.Equal(t, 12*time.Hour, Load().Signing().SessionDuration)

	t.Setenv(KeySigningSessionSeconds, "60")
	assert.Equal(t, 15*time.Minute, Load().Signing().SessionDuration)

	t.Setenv(KeySigningRoleARN, "")
	assert.False(t, Load().Signing().Enabled())

	t.Setenv(KeySigningAccessKeyID, "AKIDSIGNER")
	t.Setenv(KeySigningSecretKey, "signer-secret")
	signing = Load().Signing()
	assert.Equal(t, "AKIDSIGNER", signing.AccessKeyID)
	assert.Equal(t, "signer-secret", signing.SecretAccessKey)
	assert.True(t, signing.Enabled())
}
