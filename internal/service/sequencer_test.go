package service

import (
	"testing"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func binding(id string, priority *int, status models.SigneeStatus, position int, isAccount bool) models.ContractSignee {
	return models.ContractSignee{
		ID:              id,
		SigneePriority:  priority,
		Status:          status,
		Position:        position,
		IsAccountSignee: isAccount,
	}
}

func ids(bindings []models.ContractSignee) []string {
	var out []string
	for _, b := range bindings {
		out = append(out, b.ID)
	}
	return out
}

func TestEligibleRecipientsParallel(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("a", nil, models.SigneeNotSent, 0, false),
		binding("b", nil, models.SigneePending, 1, false),
		binding("c", nil, models.SigneeSigned, 2, false),
	}

	// Everything not yet signed fans out, including a re-notified pending one
	eligible := eligibleRecipients(false, bindings)
	assert.Equal(t, []string{"a", "b"}, ids(eligible))
}

func TestEligibleRecipientsPriority(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("third", intPtr(3), models.SigneeNotSent, 0, false),
		binding("first", intPtr(1), models.SigneeNotSent, 1, false),
		binding("second", intPtr(2), models.SigneeNotSent, 2, false),
	}

	eligible := eligibleRecipients(true, bindings)
	assert.Equal(t, []string{"first"}, ids(eligible))

	// Once the current signer has signed, the next priority becomes eligible
	bindings[1].Status = models.SigneeSigned
	eligible = eligibleRecipients(true, bindings)
	assert.Equal(t, []string{"second"}, ids(eligible))
}

func TestEligibleRecipientsPriorityTieBreak(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("later", intPtr(1), models.SigneeNotSent, 5, false),
		binding("earlier", intPtr(1), models.SigneeNotSent, 2, false),
	}

	// Equal priorities resolve to the first-inserted binding
	eligible := eligibleRecipients(true, bindings)
	assert.Equal(t, []string{"earlier"}, ids(eligible))
}

func TestEligibleRecipientsSkipsNilPriority(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("unordered", nil, models.SigneeNotSent, 0, false),
	}

	eligible := eligibleRecipients(true, bindings)
	assert.Empty(t, eligible)
}

func TestEligibleRecipientsAccountBindings(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("internal", nil, models.SigneeNotSent, 0, true),
		binding("internal-notified", nil, models.SigneePending, 1, true),
		binding("external", intPtr(1), models.SigneeNotSent, 2, false),
	}

	// Account bindings ride along in priority mode too, but a pending one
	// is not re-notified
	eligible := eligibleRecipients(true, bindings)
	assert.Equal(t, []string{"internal", "external"}, ids(eligible))

	eligible = eligibleRecipients(false, bindings)
	assert.Equal(t, []string{"internal", "external"}, ids(eligible))
}

func TestNextInSequence(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("signed", intPtr(1), models.SigneeSigned, 0, false),
		binding("next", intPtr(3), models.SigneeNotSent, 1, false),
		binding("after", intPtr(5), models.SigneeNotSent, 2, false),
	}

	// Gaps in the priority values are fine; the smallest strictly greater
	// priority wins
	next := nextInSequence(bindings, 1)
	assert.NotNil(t, next)
	assert.Equal(t, "next", next.ID)
}

func TestNextInSequenceExhausted(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("signed", intPtr(2), models.SigneeSigned, 0, false),
		binding("unordered", nil, models.SigneeNotSent, 1, false),
		binding("internal", nil, models.SigneeNotSent, 2, true),
	}

	// Neither nil-priority nor account bindings are ever advanced to
	assert.Nil(t, nextInSequence(bindings, 2))
}

func TestNextInSequenceTieBreak(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("later", intPtr(2), models.SigneeNotSent, 4, false),
		binding("earlier", intPtr(2), models.SigneeNotSent, 1, false),
	}

	next := nextInSequence(bindings, 1)
	assert.NotNil(t, next)
	assert.Equal(t, "earlier", next.ID)
}

func TestPendingAndSignedCounts(t *testing.T) {
	bindings := []models.ContractSignee{
		binding("a", nil, models.SigneePending, 0, false),
		binding("b", nil, models.SigneeSigned, 1, false),
		binding("c", nil, models.SigneeNotSent, 2, false),
	}

	assert.Equal(t, 1, pendingCount(bindings))
	assert.Equal(t, 1, signedCount(bindings))
}
