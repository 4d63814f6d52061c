package service

import (
	"github.com/quillsign/quillsign-server/internal/models"
)

// The signing sequencer decides, from a contract's binding rows, who is
// entitled to be notified or to act right now. It operates on plain slices
// so the contract lifecycle can run it inside or outside a transaction.

// eligibleRecipients computes the set of bindings to notify on a send.
//
// Account-level bindings are always notified in parallel regardless of the
// client's priority mode, but only once: a pending account binding is never
// re-notified here.
//
// Non-account bindings depend on the client: without priority everything not
// yet signed fans out in one batch (a re-send therefore re-notifies pending
// signees); with priority only the current signer is eligible: the
// not-yet-signed binding with the lowest priority value, ties broken by
// insertion order. Bindings without a priority value take no part in the
// ordering and are never selected under priority mode.
func eligibleRecipients(priorityRequired bool, bindings []models.ContractSignee) []models.ContractSignee {
	var eligible []models.ContractSignee

	for _, b := range bindings {
		if b.IsAccountSignee && b.Status == models.SigneeNotSent {
			eligible = append(eligible, b)
		}
	}

	if !priorityRequired {
		for _, b := range bindings {
			if !b.IsAccountSignee && b.Status != models.SigneeSigned {
				eligible = append(eligible, b)
			}
		}
		return eligible
	}

	var current *models.ContractSignee
	for i := range bindings {
		b := &bindings[i]
		if b.IsAccountSignee || b.SigneePriority == nil || b.Status == models.SigneeSigned {
			continue
		}
		if current == nil || lessByPriority(b, current) {
			current = b
		}
	}
	if current != nil {
		eligible = append(eligible, *current)
	}

	return eligible
}

// nextInSequence finds the binding the sequencer advances to after the
// signer holding justSigned submits: the unprocessed binding with the
// smallest priority strictly greater than justSigned. Nil when the sequence
// is exhausted; completion is then the aggregator's call, not ours.
func nextInSequence(bindings []models.ContractSignee, justSigned int) *models.ContractSignee {
	var next *models.ContractSignee
	for i := range bindings {
		b := &bindings[i]
		if b.IsAccountSignee || b.SigneePriority == nil || b.Status != models.SigneeNotSent {
			continue
		}
		if *b.SigneePriority <= justSigned {
			continue
		}
		if next == nil || lessByPriority(b, next) {
			next = b
		}
	}
	return next
}

// lessByPriority orders two prioritized bindings; equal priorities fall back
// to insertion order, so the first-inserted signee wins a tie.
func lessByPriority(a, b *models.ContractSignee) bool {
	if *a.SigneePriority != *b.SigneePriority {
		return *a.SigneePriority < *b.SigneePriority
	}
	return a.Position < b.Position
}

// pendingCount is what the completion aggregator watches: the contract
// finalizes exactly when this reaches zero after a submit.
func pendingCount(bindings []models.ContractSignee) int {
	n := 0
	for _, b := range bindings {
		if b.Status == models.SigneePending {
			n++
		}
	}
	return n
}

func signedCount(bindings []models.ContractSignee) int {
	n := 0
	for _, b := range bindings {
		if b.Status == models.SigneeSigned {
			n++
		}
	}
	return n
}
