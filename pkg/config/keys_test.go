package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseKeyReference(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		wantType  KeyType
		wantValue string
		wantErr   bool
	}{
		{name: "bare hex", ref: anvilKey0, wantType: KeyTypeLocal, wantValue: anvilKey0},
		{name: "hex without prefix", ref: anvilKey0[2:], wantType: KeyTypeLocal, wantValue: anvilKey0},
		{name: "local prefix", ref: "local:" + anvilKey0, wantType: KeyTypeLocal, wantValue: anvilKey0},
		{name: "kms key id", ref: "awskms:1234abcd-12ab-34cd-56ef-1234567890ab", wantType: KeyTypeAWSKMS, wantValue: "1234abcd-12ab-34cd-56ef-1234567890ab"},
		{name: "kms arn", ref: "awskms:arn:aws:kms:us-east-1:111122223333:key/abc", wantType: KeyTypeAWSKMS, wantValue: "arn:aws:kms:us-east-1:111122223333:key/abc"},
		{name: "web3signer", ref: "web3signer:0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", wantType: KeyTypeWeb3Signer, wantValue: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{name: "empty", ref: "  ", wantErr: true},
		{name: "short key", ref: "0x1234", wantErr: true},
		{name: "empty kms id", ref: "awskms:", wantErr: true},
		{name: "bad web3signer address", ref: "web3signer:alice", wantErr: true},
		{name: "unknown type", ref: "vault:secret/key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseKeyReference(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ref.Type)
			assert.Equal(t, tt.wantValue, ref.Value)
		})
	}
}

func Test_KeyReferenceString(t *testing.T) {
	ref, err := ParseKeyReference(anvilKey0)
	require.NoError(t, err)
	assert.NotContains(t, ref.String(), anvilKey0[2:])

	ref, err = ParseKeyReference("awskms:abc")
	require.NoError(t, err)
	assert.Equal(t, "awskms:abc", ref.String())
}
