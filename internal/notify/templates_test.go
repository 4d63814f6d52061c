package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplatesValidatesPlaceholders(t *testing.T) {
	// The defaults are self-consistent
	set, err := LoadTemplates(nil)
	require.NoError(t, err)
	assert.Len(t, set, 6)

	// An override referencing a placeholder the variant does not carry
	// fails at load time, not at send time
	_, err = LoadTemplates(TemplateSet{
		EmailSigningConfirmed: {
			Subject: "You signed {contract_name}",
			Body:    "Follow up here: {contract_link}",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract_link")

	// A template for a type with no payload variant is rejected too
	_, err = LoadTemplates(TemplateSet{
		EmailType("UNKNOWN_TYPE"): {Subject: "?", Body: "?"},
	})
	assert.Error(t, err)
}

func TestLoadTemplatesAppliesOverrides(t *testing.T) {
	set, err := LoadTemplates(TemplateSet{
		EmailSigningConfirmed: {
			Subject: "Thanks, {signee_name}",
			Body:    "Your signature on {contract_name} is in.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Thanks, {signee_name}", set[EmailSigningConfirmed].Subject)

	// Untouched types keep the defaults
	assert.Equal(t, DefaultTemplates()[EmailCancelled], set[EmailCancelled])
}

func TestTemplateSetJob(t *testing.T) {
	set, err := LoadTemplates(nil)
	require.NoError(t, err)

	job, err := set.Job("alice@globex.test", SendContractData{
		SigneeName:   "Alice",
		ContractName: "Master Services Agreement",
		AccountName:  "Acme Corp",
		ContractLink: "https://sign.example/view?token=abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@globex.test", job.EmailTo)
	assert.Equal(t, EmailSendContract, job.EmailType)
	assert.Equal(t, "Acme Corp has sent you a contract to sign", job.Subject)
	assert.Contains(t, job.Body, "Hi Alice,")
	assert.Contains(t, job.Body, "https://sign.example/view?token=abc")
	assert.NotContains(t, job.Body, "{")
	assert.Equal(t, "Master Services Agreement", job.EmailData["contract_name"])
}

func TestTemplateSetJobMissingTemplate(t *testing.T) {
	set := TemplateSet{}
	_, err := set.Job("alice@globex.test", SigningReminderData{})
	assert.Error(t, err)
}
