package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chathubhq/chathub/internal/channel"
)

func TestClassify_WhatsAppText(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"wa_id": "573001112233", "profile": {"name": "Ana"}}],
					"messages": [{
						"from": "573001112233",
						"id": "wamid.A1",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "Hola"}
					}]
				}
			}]
		}]
	}`)

	d := Classify(body)
	require.True(t, d.HasEntries)
	require.Len(t, d.Events, 1)

	ev := d.Events[0]
	require.Equal(t, channel.PlatformWhatsApp, ev.Platform)
	require.Equal(t, "573001112233", ev.UserID)
	require.Equal(t, "Ana", ev.Name)
	require.Equal(t, channel.ContentText, ev.Type)
	require.Equal(t, "Hola", ev.Text)
	require.Equal(t, "1700000000", ev.VendorTS)
	require.False(t, ev.Echo)
}

func TestClassify_WhatsAppImage(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{
						"from": "573001112233",
						"type": "image",
						"timestamp": "1700000001",
						"image": {"id": "media-77", "mime_type": "image/jpeg"}
					}]
				}
			}]
		}]
	}`)

	d := Classify(body)
	require.Len(t, d.Events, 1)
	ev := d.Events[0]
	require.Equal(t, channel.ContentImage, ev.Type)
	require.Equal(t, "media-77", ev.MediaID)
	require.Equal(t, "image/jpeg", ev.MimeType)
	require.Empty(t, ev.Text)
}

func TestClassify_MessengerTextAndEcho(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page-1",
			"messaging": [
				{
					"sender": {"id": "psid-9"},
					"recipient": {"id": "page-1"},
					"timestamp": 1700000000000,
					"message": {"mid": "m1", "text": "Buenas"}
				},
				{
					"sender": {"id": "page-1"},
					"recipient": {"id": "psid-9"},
					"timestamp": 1700000001000,
					"message": {"mid": "m2", "text": "Gracias por escribir", "is_echo": true}
				}
			]
		}]
	}`)

	d := Classify(body)
	require.Len(t, d.Events, 2)

	inbound := d.Events[0]
	require.Equal(t, channel.PlatformMessenger, inbound.Platform)
	require.Equal(t, "psid-9", inbound.UserID)
	require.False(t, inbound.Echo)

	echo := d.Events[1]
	require.True(t, echo.Echo)
	// The conversation party for an echo is the recipient, not the sender.
	require.Equal(t, "psid-9", echo.UserID)
}

func TestClassify_InstagramStandbyAttachment(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"standby": [{
				"sender": {"id": "ig-42"},
				"recipient": {"id": "biz-1"},
				"message": {
					"mid": "m3",
					"attachments": [{"type": "image", "payload": {"url": "https://lookaside.fbsbx.com/x.jpg"}}]
				}
			}]
		}]
	}`)

	d := Classify(body)
	require.Len(t, d.Events, 1)
	ev := d.Events[0]
	require.Equal(t, channel.PlatformInstagram, ev.Platform)
	require.Equal(t, channel.ContentImage, ev.Type)
	require.Equal(t, "https://lookaside.fbsbx.com/x.jpg", ev.AttachmentURL)
}

func TestClassify_UnknownShapesAreSkipped(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":          `{{`,
		"no entry":          `{"object": "page"}`,
		"unknown object":    `{"object": "mystery", "entry": [{"weird": true}]}`,
		"delivery receipts": `{"object": "page", "entry": [{"messaging": [{"sender": {"id": "x"}, "delivery": {}}]}]}`,
		"empty message":     `{"object": "instagram", "entry": [{"messaging": [{"sender": {"id": "x"}, "message": {}}]}]}`,
	} {
		d := Classify([]byte(body))
		require.Empty(t, d.Events, "case %q must yield no events", name)
	}
}

func TestClassify_NoEntryFlag(t *testing.T) {
	t.Parallel()
	require.False(t, Classify([]byte(`{"object": "page"}`)).HasEntries)
	require.True(t, Classify([]byte(`{"object": "page", "entry": [{}]}`)).HasEntries)
}
