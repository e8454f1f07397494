package model

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) String() string { return string(c) }

// Message types used in dedup keys and metrics.
const (
	MessageConfirmation = "confirmation"
	MessageOwnerAlert   = "owner_alert"
	MessageFollowUp     = "follow_up"
)
