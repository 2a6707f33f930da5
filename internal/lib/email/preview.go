package email

// PreviewData holds sample values for rendering every template without a
// database, used by the template tests and local previews.
var PreviewData = map[Template]map[string]string{
	TemplatePartnerApproved: {
		"PartnerName": "Jane",
		"ProgramName": "Acme",
		"ProgramSlug": "acme",
	},
	TemplatePartnerBanned: {
		"PartnerName": "Jane",
		"ProgramName": "Acme",
		"Reason":      "Fake traffic",
	},
	TemplatePartnerInvited: {
		"PartnerName": "Jane",
		"ProgramName": "Acme",
		"ProgramSlug": "acme",
	},
	TemplateApplicationReceived: {
		"PartnerName":  "Jane",
		"PartnerEmail": "jane@example.com",
		"ProgramName":  "Acme",
		"ProgramID":    "prog_01J0000000000000000000000",
	},
	TemplateNewCommission: {
		"PartnerName": "Jane",
		"ProgramName": "Acme",
		"Earnings":    "$15.00",
		"Type":        "sale",
	},
	TemplatePayoutSent: {
		"PartnerName": "Jane",
		"ProgramName": "Acme",
		"Amount":      "$250.00",
		"Period":      "Jan 1, 2026 - Jan 31, 2026",
	},
	TemplateNewMessage: {
		"RecipientName":   "Jane",
		"SenderName":      "Acme",
		"ProgramName":     "Acme",
		"MessageCount":    "2",
		"Preview":         "Thanks for joining! Here's our brand kit.",
		"ConversationURL": "/messages/acme",
	},
}
