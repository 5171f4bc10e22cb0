package verify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
)

// PlatformVerifier runs WebAuthn ceremonies against registered platform
// credentials. A ceremony spans two calls; the server-side session data is
// parked in a PlatformChallenge row between them.
type PlatformVerifier struct {
	DB           *gorm.DB
	WebAuthn     *webauthn.WebAuthn
	ChallengeTTL time.Duration

	now func() time.Time
}

func NewPlatformVerifier(db *gorm.DB, wa *webauthn.WebAuthn, challengeTTL time.Duration) *PlatformVerifier {
	return &PlatformVerifier{
		DB:           db,
		WebAuthn:     wa,
		ChallengeTTL: challengeTTL,
		now:          time.Now,
	}
}

type platformUser struct {
	identity string
	creds    []webauthn.Credential
}

func (u *platformUser) WebAuthnID() []byte          { return []byte(u.identity) }
func (u *platformUser) WebAuthnName() string        { return u.identity }
func (u *platformUser) WebAuthnDisplayName() string { return u.identity }
func (u *platformUser) WebAuthnIcon() string        { return "" }
func (u *platformUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

func (v *PlatformVerifier) loadPlatformUser(ctx context.Context, identity string) (*platformUser, error) {
	var dbCreds []models.PlatformCredential
	if err := v.DB.WithContext(ctx).Where("identity = ?", identity).Find(&dbCreds).Error; err != nil {
		return nil, err
	}

	creds := make([]webauthn.Credential, len(dbCreds))
	for i, dc := range dbCreds {
		var transports []protocol.AuthenticatorTransport
		if dc.Transports != "" {
			var ts []string
			json.Unmarshal([]byte(dc.Transports), &ts)
			for _, t := range ts {
				transports = append(transports, protocol.AuthenticatorTransport(t))
			}
		}
		creds[i] = webauthn.Credential{
			ID:              dc.CredentialID,
			PublicKey:       dc.PublicKey,
			AttestationType: dc.AttestationType,
			Authenticator: webauthn.Authenticator{
				AAGUID:    dc.AAGUID,
				SignCount: dc.SignCount,
			},
			Transport: transports,
			Flags: webauthn.CredentialFlags{
				BackupEligible: dc.BackupEligible,
				BackupState:    dc.BackupState,
			},
		}
	}

	return &platformUser{identity: identity, creds: creds}, nil
}

// HasCredential reports whether the identity has at least one registered
// platform credential. Identities without one skip this method entirely.
func (v *PlatformVerifier) HasCredential(ctx context.Context, identity string) (bool, error) {
	var count int64
	err := v.DB.WithContext(ctx).Model(&models.PlatformCredential{}).
		Where("identity = ?", identity).Count(&count).Error
	return count > 0, err
}

// BeginRegistration starts a credential registration ceremony and returns
// the creation options for the client.
func (v *PlatformVerifier) BeginRegistration(ctx context.Context, identity string) (interface{}, error) {
	waUser, err := v.loadPlatformUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	options, session, err := v.WebAuthn.BeginRegistration(waUser)
	if err != nil {
		return nil, err
	}

	if err := v.parkChallenge(ctx, identity, models.PlatformChallengeRegistration, session); err != nil {
		return nil, err
	}
	return options, nil
}

// FinishRegistration completes a registration ceremony and stores the new
// credential.
func (v *PlatformVerifier) FinishRegistration(ctx context.Context, identity, name string, response json.RawMessage) (*models.PlatformCredential, error) {
	session, challengeID, err := v.takeChallenge(ctx, identity, models.PlatformChallengeRegistration)
	if err != nil {
		return nil, err
	}

	waUser, err := v.loadPlatformUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	parsedResponse, err := protocol.ParseCredentialCreationResponseBody(strings.NewReader(string(response)))
	if err != nil {
		return nil, err
	}

	credential, err := v.WebAuthn.CreateCredential(waUser, *session, parsedResponse)
	if err != nil {
		return nil, err
	}

	var transportsJSON []byte
	if len(credential.Transport) > 0 {
		ts := make([]string, len(credential.Transport))
		for i, t := range credential.Transport {
			ts[i] = string(t)
		}
		transportsJSON, _ = json.Marshal(ts)
	}

	if name == "" {
		name = "Passkey"
	}

	dbCred := models.PlatformCredential{
		Identity:        identity,
		CredentialID:    credential.ID,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		AAGUID:          credential.Authenticator.AAGUID,
		SignCount:       credential.Authenticator.SignCount,
		Name:            name,
		Transports:      string(transportsJSON),
		BackupEligible:  credential.Flags.BackupEligible,
		BackupState:     credential.Flags.BackupState,
	}
	if err := v.DB.WithContext(ctx).Create(&dbCred).Error; err != nil {
		return nil, err
	}

	v.DB.WithContext(ctx).Where("id = ?", challengeID).Delete(&models.PlatformChallenge{})

	logger.InfoWithIdentity(identity, "platform_credential_registered", map[string]interface{}{
		"credential_id": dbCred.ID.String(),
		"name":          dbCred.Name,
	})
	return &dbCred, nil
}

// BeginAuthentication starts an assertion ceremony. An identity with no
// registered credential gets a transport_unavailable result so the caller
// falls through to the next method.
func (v *PlatformVerifier) BeginAuthentication(ctx context.Context, identity string) (interface{}, Result, error) {
	waUser, err := v.loadPlatformUser(ctx, identity)
	if err != nil {
		return nil, fail(KindProviderFailure), err
	}
	if len(waUser.creds) == 0 {
		return nil, fail(KindTransportUnavailable), nil
	}

	options, session, err := v.WebAuthn.BeginLogin(waUser)
	if err != nil {
		logger.ErrorWithIdentity(identity, "platform_begin_failed", err, nil)
		return nil, fail(KindProviderFailure), err
	}

	if err := v.parkChallenge(ctx, identity, models.PlatformChallengeAuthentication, session); err != nil {
		return nil, fail(KindProviderFailure), err
	}
	return options, ok(), nil
}

// FinishAuthentication validates the assertion. An empty response means the
// client cancelled or the authenticator was unavailable, which is reported
// as transport_unavailable rather than a credential mismatch.
func (v *PlatformVerifier) FinishAuthentication(ctx context.Context, identity string, response json.RawMessage) Result {
	if len(response) == 0 || string(response) == "null" {
		return fail(KindTransportUnavailable)
	}

	session, challengeID, err := v.takeChallenge(ctx, identity, models.PlatformChallengeAuthentication)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(KindChallengeExpired)
		}
		logger.ErrorWithIdentity(identity, "platform_challenge_load_failed", err, nil)
		return fail(KindProviderFailure)
	}

	waUser, err := v.loadPlatformUser(ctx, identity)
	if err != nil {
		return fail(KindProviderFailure)
	}

	parsedResponse, err := protocol.ParseCredentialRequestResponseBody(strings.NewReader(string(response)))
	if err != nil {
		return fail(KindInvalidFormat)
	}

	credential, err := v.WebAuthn.ValidateLogin(waUser, *session, parsedResponse)
	if err != nil {
		return fail(KindCredentialMismatch)
	}

	v.DB.WithContext(ctx).Where("id = ?", challengeID).Delete(&models.PlatformChallenge{})

	now := v.now()
	v.DB.WithContext(ctx).Model(&models.PlatformCredential{}).
		Where("identity = ? AND credential_id = ?", identity, credential.ID).
		Updates(map[string]interface{}{
			"sign_count":   credential.Authenticator.SignCount,
			"last_used_at": now,
		})

	return ok()
}

func (v *PlatformVerifier) parkChallenge(ctx context.Context, identity string, typ models.PlatformChallengeType, session *webauthn.SessionData) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// Only one outstanding ceremony of each type per identity.
	v.DB.WithContext(ctx).Where("identity = ? AND type = ?", identity, typ).
		Delete(&models.PlatformChallenge{})

	challenge := models.PlatformChallenge{
		Identity:    identity,
		Challenge:   []byte(session.Challenge),
		Type:        typ,
		SessionData: string(sessionJSON),
		ExpiresAt:   v.now().Add(v.ChallengeTTL),
	}
	return v.DB.WithContext(ctx).Create(&challenge).Error
}

func (v *PlatformVerifier) takeChallenge(ctx context.Context, identity string, typ models.PlatformChallengeType) (*webauthn.SessionData, string, error) {
	var challenge models.PlatformChallenge
	if err := v.DB.WithContext(ctx).
		Where("identity = ? AND type = ? AND expires_at > ?", identity, typ, v.now()).
		Order("created_at DESC").First(&challenge).Error; err != nil {
		return nil, "", err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(challenge.SessionData), &session); err != nil {
		return nil, "", err
	}
	return &session, challenge.ID.String(), nil
}
