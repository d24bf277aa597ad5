package vault

import "testing"

func TestSecretFieldConstructors(t *testing.T) {
	if got := Absent(); got.State != SecretAbsent {
		t.Errorf("Absent().State = %v, want %v", got.State, SecretAbsent)
	}

	red := Redacted()
	if red.State != SecretRedacted || red.Value != "[ENCRYPTED]" {
		t.Errorf("Redacted() = %+v", red)
	}

	pres := Present("super-secret")
	if pres.State != SecretPresent || pres.Value != "super-secret" {
		t.Errorf("Present() = %+v", pres)
	}
}

func TestErrCredentialNotFound(t *testing.T) {
	err := errCredentialNotFound()
	if err.Code != CodeCredentialNotFound {
		t.Errorf("Code = %v, want %v", err.Code, CodeCredentialNotFound)
	}
	if err.Error() != "credential not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrInvalidCredential(t *testing.T) {
	err := errInvalidCredential("oauth2 credentials require an accessToken")
	if err.Code != CodeInvalidCredential {
		t.Errorf("Code = %v, want %v", err.Code, CodeInvalidCredential)
	}
	if err.Status != 400 {
		t.Errorf("Status = %v, want 400", err.Status)
	}
}

func TestValidateSecrets(t *testing.T) {
	token := "a-token"
	empty := ""

	cases := []struct {
		name    string
		typ     CredentialType
		access  *string
		refresh *string
		api     *string
		pass    *string
		wantErr bool
	}{
		{"oauth2 with access token", CredentialTypeOAuth2, &token, nil, nil, nil, false},
		{"oauth2 missing access token", CredentialTypeOAuth2, nil, nil, nil, nil, true},
		{"oauth2 empty access token", CredentialTypeOAuth2, &empty, nil, nil, nil, true},
		{"api_token with apiToken", CredentialTypeAPIToken, nil, nil, &token, nil, false},
		{"pat with apiToken", CredentialTypePAT, nil, nil, &token, nil, false},
		{"api_token missing apiToken", CredentialTypeAPIToken, nil, nil, nil, nil, true},
		{"basic_auth with password", CredentialTypeBasicAuth, nil, nil, nil, &token, false},
		{"basic_auth missing password", CredentialTypeBasicAuth, nil, nil, nil, nil, true},
		{"unknown credentialType", CredentialType("bogus"), &token, nil, nil, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSecrets(tc.typ, tc.access, tc.refresh, tc.api, tc.pass)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateSecrets(%v) error = %v, wantErr %v", tc.typ, err, tc.wantErr)
			}
		})
	}
}
