package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Payload is one tagged email variant. Each variant carries a fixed set of
// fields; Fields returns them keyed by placeholder name. Templates are
// checked against these sets when the template set loads, so a template that
// references a placeholder its variant does not provide is rejected at
// startup rather than at send time.
type Payload interface {
	Type() EmailType
	Fields() map[string]string
}

type SendContractData struct {
	SigneeName   string
	ContractName string
	AccountName  string
	ContractLink string
}

func (SendContractData) Type() EmailType { return EmailSendContract }

func (d SendContractData) Fields() map[string]string {
	return map[string]string{
		"signee_name":   d.SigneeName,
		"contract_name": d.ContractName,
		"account_name":  d.AccountName,
		"contract_link": d.ContractLink,
	}
}

type SigningConfirmedData struct {
	SigneeName   string
	ContractName string
}

func (SigningConfirmedData) Type() EmailType { return EmailSigningConfirmed }

func (d SigningConfirmedData) Fields() map[string]string {
	return map[string]string{
		"signee_name":   d.SigneeName,
		"contract_name": d.ContractName,
	}
}

type SignedByAllData struct {
	SigneeName   string
	ContractName string
}

func (SignedByAllData) Type() EmailType { return EmailSignedByAll }

func (d SignedByAllData) Fields() map[string]string {
	return map[string]string{
		"signee_name":   d.SigneeName,
		"contract_name": d.ContractName,
	}
}

type CancelledData struct {
	RecipientName string
	ContractName  string
	ActorName     string
}

func (CancelledData) Type() EmailType { return EmailCancelled }

func (d CancelledData) Fields() map[string]string {
	return map[string]string{
		"recipient_name": d.RecipientName,
		"contract_name":  d.ContractName,
		"actor_name":     d.ActorName,
	}
}

type SigningReminderData struct {
	SigneeName   string
	ContractName string
	ContractLink string
}

func (SigningReminderData) Type() EmailType { return EmailSigningReminder }

func (d SigningReminderData) Fields() map[string]string {
	return map[string]string{
		"signee_name":   d.SigneeName,
		"contract_name": d.ContractName,
		"contract_link": d.ContractLink,
	}
}

type DeletionNoticeData struct {
	UserName     string
	AccountName  string
	DeletionDate string
}

func (DeletionNoticeData) Type() EmailType { return EmailDeletionNotice }

func (d DeletionNoticeData) Fields() map[string]string {
	return map[string]string{
		"user_name":     d.UserName,
		"account_name":  d.AccountName,
		"deletion_date": d.DeletionDate,
	}
}

// Template is one subject/body pair with {placeholder} substitution
type Template struct {
	Subject string
	Body    string
}

// TemplateSet maps every email type to its template
type TemplateSet map[EmailType]Template

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// variantFields lists the placeholders each variant provides, derived from
// the zero value of the payload structs above.
var variantFields = map[EmailType]map[string]string{
	EmailSendContract:     SendContractData{}.Fields(),
	EmailSigningConfirmed: SigningConfirmedData{}.Fields(),
	EmailSignedByAll:      SignedByAllData{}.Fields(),
	EmailCancelled:        CancelledData{}.Fields(),
	EmailSigningReminder:  SigningReminderData{}.Fields(),
	EmailDeletionNotice:   DeletionNoticeData{}.Fields(),
}

// DefaultTemplates returns the built-in template set
func DefaultTemplates() TemplateSet {
	return TemplateSet{
		EmailSendContract: {
			Subject: "{account_name} has sent you a contract to sign",
			Body:    "Hi {signee_name},\n\n{account_name} has requested your signature on \"{contract_name}\".\n\nReview and sign here: {contract_link}\n",
		},
		EmailSigningConfirmed: {
			Subject: "You signed {contract_name}",
			Body:    "Hi {signee_name},\n\nYour signature on \"{contract_name}\" has been recorded.\n",
		},
		EmailSignedByAll: {
			Subject: "{contract_name} has been signed by all signees",
			Body:    "Hi {signee_name},\n\n\"{contract_name}\" is now fully signed and final.\n",
		},
		EmailCancelled: {
			Subject: "{contract_name} was cancelled",
			Body:    "Hi {recipient_name},\n\n\"{contract_name}\" was cancelled by {actor_name}. No further action is required.\n",
		},
		EmailSigningReminder: {
			Subject: "Reminder: {contract_name} is waiting for your signature",
			Body:    "Hi {signee_name},\n\n\"{contract_name}\" is still waiting for your signature.\n\nSign here: {contract_link}\n",
		},
		EmailDeletionNotice: {
			Subject: "Your {account_name} account is scheduled for deletion",
			Body:    "Hi {user_name},\n\nYour account \"{account_name}\" has been deactivated and will be permanently deleted on {deletion_date}.\n",
		},
	}
}

// LoadTemplates validates a template set against the payload variants and
// returns it. Overrides replace built-in templates per type; a template
// referencing a placeholder its variant does not carry fails the load.
func LoadTemplates(overrides TemplateSet) (TemplateSet, error) {
	set := DefaultTemplates()
	for typ, tpl := range overrides {
		set[typ] = tpl
	}

	for typ, tpl := range set {
		fields, ok := variantFields[typ]
		if !ok {
			return nil, fmt.Errorf("template for unknown email type %q", typ)
		}
		for _, text := range []string{tpl.Subject, tpl.Body} {
			for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
				if _, ok := fields[m[1]]; !ok {
					return nil, fmt.Errorf("template %q references placeholder {%s} not provided by its payload", typ, m[1])
				}
			}
		}
	}

	return set, nil
}

// Job renders the template for the payload's type into a ready EmailJob
func (t TemplateSet) Job(emailTo string, p Payload) (EmailJob, error) {
	tpl, ok := t[p.Type()]
	if !ok {
		return EmailJob{}, fmt.Errorf("no template for email type %q", p.Type())
	}

	fields := p.Fields()
	render := func(text string) string {
		for name, value := range fields {
			text = strings.ReplaceAll(text, "{"+name+"}", value)
		}
		return text
	}

	return EmailJob{
		EmailTo:   emailTo,
		Subject:   render(tpl.Subject),
		Body:      render(tpl.Body),
		EmailType: p.Type(),
		EmailData: fields,
	}, nil
}
