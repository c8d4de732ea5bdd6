package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/stefando/lfsS3/internal/lfs"
)

// STS accepts session durations in this range. Sessions assumed by role
// chaining, which includes any AssumeRole call made from Lambda execution
// credentials, are further capped at one hour.
const (
	MinSigningSessionDuration     = 15 * time.Minute
	MaxSigningSessionDuration     = 12 * time.Hour
	DefaultSigningSessionDuration = time.Hour
)

// SigningConfig selects the identity presigned URLs are signed with.
//
// A URL signed with temporary credentials stops working when the session
// ends, so it expires at the earlier of the session end and lfs.URLExpiry.
// Long-term keys (AccessKeyID and SecretAccessKey) are the only way to get the
// full URLExpiry window from Lambda.
type SigningConfig struct {
	AccessKeyID     string
	SecretAccessKey string

	RoleARN         string
	SessionDuration time.Duration
}

// Enabled reports whether any signing identity is configured
func (c SigningConfig) Enabled() bool {
	return c.AccessKeyID != "" || c.RoleARN != ""
}

// ClampSessionDuration bounds d to what STS accepts. Zero selects
// DefaultSigningSessionDuration.
func ClampSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSigningSessionDuration
	case d < MinSigningSessionDuration:
		return MinSigningSessionDuration
	case d > MaxSigningSessionDuration:
		return MaxSigningSessionDuration
	}
	return d
}

// signingExpiryWindow is how long before session end cached credentials are
// replaced. Sessions longer than one URL validity window keep every URL valid
// for its full lifetime; shorter ones guarantee half a session.
func signingExpiryWindow(session time.Duration) time.Duration {
	if session > lfs.URLExpiry {
		return lfs.URLExpiry
	}
	return session / 2
}

// AssumeRoleProvider fetches credentials for RoleARN through STS AssumeRole
type AssumeRoleProvider struct {
	Client   *sts.Client
	RoleARN  string
	Duration time.Duration
}

// Retrieve implements the aws.CredentialsProvider interface
func (p *AssumeRoleProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	if p.RoleARN == "" {
		return aws.Credentials{}, fmt.Errorf("role ARN cannot be empty")
	}

	// Session name carries a timestamp so CloudTrail entries are distinguishable
	sessionName := fmt.Sprintf("lfs-presign-%d", time.Now().Unix())

	out, err := p.Client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(ClampSessionDuration(p.Duration) / time.Second)),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to assume signing role %s: %w", p.RoleARN, err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("assume role %s returned no credentials", p.RoleARN)
	}

	return aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "AssumeRoleProvider",
		CanExpire:       true,
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}, nil
}

// NewSigningCredentials returns the provider described by sc, or nil when
// presigning should use the default credential chain. Static keys take
// precedence over RoleARN.
func NewSigningCredentials(cfg aws.Config, sc SigningConfig) aws.CredentialsProvider {
	if sc.AccessKeyID != "" {
		return credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, "")
	}
	if sc.RoleARN == "" {
		return nil
	}

	session := ClampSessionDuration(sc.SessionDuration)
	provider := &AssumeRoleProvider{
		Client:   sts.NewFromConfig(cfg),
		RoleARN:  sc.RoleARN,
		Duration: session,
	}
	return aws.NewCredentialsCache(provider, func(o *aws.CredentialsCacheOptions) {
		o.ExpiryWindow = signingExpiryWindow(session)
	})
}
