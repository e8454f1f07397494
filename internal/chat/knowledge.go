package chat

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	greetingReply = "Hi there! 👋 I can answer questions about our automation services, pricing, setup, or booking a free consultation. What would you like to know?"

	yesReply   = "Great! The quickest next step is the form on this page. Leave your details and we'll reach out within one business day, or book a free consultation directly."
	noReply    = "No problem at all. If you have any other questions about what we automate, how pricing works, or how setup goes, just ask."
	maybeReply = "Totally fair to be unsure. A free 20-minute consultation is the easiest way to see if this fits your business, with no commitment."

	defaultReply = "Good question! I don't have a precise answer for that here, but our team can walk you through it on a free consultation. Fill in the form on this page and we'll get back to you within one business day."

	apologyReply = "Sorry, something went wrong on our side. Please try again, or use the form on this page and we'll get back to you."
)

// bucket is one topic the local matcher can answer without a model.
type bucket struct {
	topic    string
	keywords []string
	answer   string
}

// buckets are checked in order; the first one with a matching keyword wins.
var buckets = []bucket{
	{
		topic:    "services",
		keywords: []string{"service", "what do you do", "offer", "automate", "automation", "help with"},
		answer: "We build done-for-you automations for small businesses:\n\n" +
			"• Lead capture forms that land in your spreadsheet instantly\n" +
			"• Instant email and WhatsApp replies to new enquiries\n" +
			"• Automatic follow-ups so no lead goes cold\n" +
			"• A website chat assistant (like me!)\n\n" +
			"Which of these matters most for your business?",
	},
	{
		topic:    "pricing",
		keywords: []string{"price", "pricing", "cost", "how much", "fees", "package", "plan", "budget"},
		answer: "We have three packages:\n\n" +
			"• Core: lead capture, email notifications, chat assistant\n" +
			"• Pro: everything in Core plus WhatsApp alerts and online booking\n" +
			"• Premium: everything in Pro plus automated follow-ups and reporting\n\n" +
			"Exact pricing depends on your setup. Book a free consultation for a quote.",
	},
	{
		topic:    "booking",
		keywords: []string{"book", "booking", "appointment", "schedule", "consultation", "meeting", "call"},
		answer: "You can book a free 20-minute consultation using the booking link on this page, " +
			"or leave your details in the form and we'll reach out to find a time that suits you.",
	},
	{
		topic:    "contact",
		keywords: []string{"contact", "email", "phone", "reach", "talk to", "human", "speak"},
		answer: "The fastest way to reach us is the form on this page. A real person reads every " +
			"submission and replies within one business day.",
	},
	{
		topic:    "setup",
		keywords: []string{"setup", "set up", "install", "how long", "onboard", "get started", "start"},
		answer: "Setup usually takes 3 to 7 days. We connect your form, spreadsheet, email and " +
			"(if you want it) WhatsApp, test everything end to end, and hand it over with a short walkthrough.",
	},
	{
		topic:    "features",
		keywords: []string{"feature", "whatsapp", "spreadsheet", "sheet", "follow up", "report", "chatbot"},
		answer: "Every setup includes a lead form, a lead spreadsheet and instant email notifications. " +
			"Higher packages add WhatsApp messages, online booking, automatic follow-ups and reporting.",
	},
	{
		topic:    "international",
		keywords: []string{"international", "country", "countries", "language", "abroad", "worldwide", "timezone"},
		answer: "Yes, we work with businesses worldwide. Notifications work with international phone " +
			"numbers, and replies can be written in your customers' language.",
	},
	{
		topic:    "customization",
		keywords: []string{"customi", "tailor", "brand", "integrat", "white label"},
		answer: "Everything is tailored to your business: your branding in emails, your wording in " +
			"messages, and integrations with the tools you already use.",
	},
}

// matchBucket returns the first bucket with a keyword starting a word of msg.
func matchBucket(msg string) (bucket, bool) {
	m := normalize(msg)
	for _, b := range buckets {
		for _, k := range b.keywords {
			if strings.Contains(m, " "+k) {
				return b, true
			}
		}
	}
	return bucket{}, false
}

// normalize lowercases s, turns punctuation into spaces and pads it with one
// leading and trailing space.
func normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// businessContexts tailors the model prompt to the demo page a visitor is on.
var businessContexts = map[string]string{
	"dental":      "a dental clinic that wants more booked appointments and fewer no-shows",
	"real-estate": "a real estate agency that needs to respond to property enquiries fast",
	"law":         "a law firm that needs to qualify enquiries and book consultations",
	"restaurant":  "a restaurant that takes reservations and catering enquiries",
	"fitness":     "a gym or fitness studio that converts trial sign-ups into members",
	"salon":       "a beauty salon that books appointments and sends reminders",
	"ecommerce":   "an online shop that follows up with interested buyers",
}

func businessContext(businessType string) string {
	k := strings.ToLower(strings.TrimSpace(businessType))
	k = strings.ReplaceAll(k, "_", "-")
	k = strings.ReplaceAll(k, " ", "-")
	if c, ok := businessContexts[k]; ok {
		return c
	}
	if k != "" {
		return "a " + strings.ReplaceAll(k, "-", " ") + " business"
	}
	return "a small business"
}

// SystemPrompt builds the model instructions for one request.
func SystemPrompt(businessName, businessType string) string {
	if businessName == "" {
		businessName = "our studio"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the friendly website assistant for %s, which sets up business automations. ", businessName)
	fmt.Fprintf(&b, "The visitor is browsing a demo built for %s.\n\n", businessContext(businessType))
	b.WriteString("Rules:\n")
	b.WriteString("- Answer in at most 4 short sentences, plain text, no markdown headings.\n")
	b.WriteString("- Only use the facts below; if unsure, suggest a free consultation.\n")
	b.WriteString("- Always end by nudging toward the form on the page or booking a consultation.\n\n")
	b.WriteString("Facts and approved answers:\n")
	for _, bk := range buckets {
		fmt.Fprintf(&b, "[%s] %s\n", bk.topic, strings.ReplaceAll(bk.answer, "\n", " "))
	}
	return b.String()
}
