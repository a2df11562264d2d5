// Package webhook turns heterogeneous Meta webhook payloads into canonical
// ingestion events and drives the contact/message pipeline for each one.
package webhook

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/chathubhq/chathub/internal/channel"
)

// Object discriminator values Meta sets on webhook deliveries.
const (
	objectWhatsApp  = "whatsapp_business_account"
	objectPage      = "page"
	objectInstagram = "instagram"
)

// InboundEvent is one canonical user-message event extracted from a delivery.
type InboundEvent struct {
	Platform channel.Platform
	// UserID is the conversation's external party: the sender for genuine
	// inbound, the recipient for echo events.
	UserID string
	// Name is the display name when the payload carries one (WhatsApp
	// contacts[]); empty otherwise.
	Name string
	// Echo marks Messenger/Instagram is_echo deliveries: messages the
	// business itself sent, mirrored through the webhook.
	Echo bool
	Type channel.ContentType
	Text string
	// MediaID and MimeType address WhatsApp media, resolved later via the
	// two-step Graph fetch.
	MediaID  string
	MimeType string
	Filename string
	// AttachmentURL is the transient Messenger/Instagram CDN link.
	AttachmentURL string
	// VendorTS is the vendor-supplied timestamp used for dedup
	// fingerprinting; empty when the vendor sent none.
	VendorTS string
}

// Delivery is the classified form of one webhook POST body.
type Delivery struct {
	Object     string
	HasEntries bool
	Events     []InboundEvent
}

type payload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string           `json:"id"`
	Changes   []change         `json:"changes"`
	Messaging []messagingEvent `json:"messaging"`
	Standby   []messagingEvent `json:"standby"`
}

type change struct {
	Value changeValue `json:"value"`
}

type changeValue struct {
	Contacts []waContact `json:"contacts"`
	Messages []waMessage `json:"messages"`
}

type waContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type waMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *waMedia `json:"image"`
	Audio    *waMedia `json:"audio"`
	Document *waMedia `json:"document"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

type messagingEvent struct {
	Sender    idRef  `json:"sender"`
	Recipient idRef  `json:"recipient"`
	Timestamp int64  `json:"timestamp"`
	Message   *struct {
		MID         string       `json:"mid"`
		Text        string       `json:"text"`
		IsEcho      bool         `json:"is_echo"`
		Attachments []attachment `json:"attachments"`
	} `json:"message"`
}

type idRef struct {
	ID string `json:"id"`
}

type attachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// Classify decodes a webhook body and extracts zero or more canonical events.
// Unknown or unsupported shapes never produce an error; the affected elements
// simply contribute no events, per the webhook contract with the vendor.
func Classify(body []byte) Delivery {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Delivery{}
	}

	delivery := Delivery{
		Object:     p.Object,
		HasEntries: len(p.Entry) > 0,
	}

	for _, e := range p.Entry {
		switch {
		case len(e.Changes) > 0:
			delivery.Events = append(delivery.Events, extractWhatsApp(e)...)
		case p.Object == objectPage:
			delivery.Events = append(delivery.Events, extractMessaging(e, channel.PlatformMessenger)...)
		case p.Object == objectInstagram:
			delivery.Events = append(delivery.Events, extractMessaging(e, channel.PlatformInstagram)...)
		}
	}
	return delivery
}

func extractWhatsApp(e entry) []InboundEvent {
	var events []InboundEvent
	for _, ch := range e.Changes {
		name := ""
		if len(ch.Value.Contacts) > 0 {
			name = strings.TrimSpace(ch.Value.Contacts[0].Profile.Name)
		}
		for _, msg := range ch.Value.Messages {
			if msg.From == "" {
				continue
			}
			ev := InboundEvent{
				Platform: channel.PlatformWhatsApp,
				UserID:   msg.From,
				Name:     name,
				VendorTS: msg.Timestamp,
			}
			switch {
			case msg.Text != nil:
				ev.Type = channel.ContentText
				ev.Text = msg.Text.Body
			case msg.Image != nil:
				ev.Type = channel.ContentImage
				ev.MediaID = msg.Image.ID
				ev.MimeType = msg.Image.MimeType
			case msg.Audio != nil:
				ev.Type = channel.ContentAudio
				ev.MediaID = msg.Audio.ID
				ev.MimeType = msg.Audio.MimeType
			case msg.Document != nil:
				ev.Type = channel.ContentDocument
				ev.MediaID = msg.Document.ID
				ev.MimeType = msg.Document.MimeType
				ev.Filename = msg.Document.Filename
			default:
				// Stickers, reactions, location shares and the like are
				// skipped, not errors.
				continue
			}
			events = append(events, ev)
		}
	}
	return events
}

func extractMessaging(e entry, platform channel.Platform) []InboundEvent {
	sources := e.Messaging
	if len(sources) == 0 {
		sources = e.Standby
	}

	var events []InboundEvent
	for _, me := range sources {
		if me.Message == nil {
			continue
		}
		ev := InboundEvent{
			Platform: platform,
			UserID:   me.Sender.ID,
			Echo:     me.Message.IsEcho,
		}
		if me.Timestamp > 0 {
			ev.VendorTS = strconv.FormatInt(me.Timestamp, 10)
		}
		// For an echo the conversation belongs to the recipient; the sender
		// is the business account itself.
		if ev.Echo {
			ev.UserID = me.Recipient.ID
		}
		if ev.UserID == "" {
			continue
		}

		switch {
		case strings.TrimSpace(me.Message.Text) != "":
			ev.Type = channel.ContentText
			ev.Text = me.Message.Text
		case len(me.Message.Attachments) > 0:
			att := me.Message.Attachments[0]
			if att.Payload.URL == "" {
				continue
			}
			ev.Type = attachmentContentType(att.Type)
			ev.AttachmentURL = att.Payload.URL
		default:
			continue
		}
		events = append(events, ev)
	}
	return events
}

func attachmentContentType(kind string) channel.ContentType {
	switch kind {
	case "image":
		return channel.ContentImage
	case "audio":
		return channel.ContentAudio
	case "file":
		return channel.ContentDocument
	default:
		return channel.ContentFile
	}
}
