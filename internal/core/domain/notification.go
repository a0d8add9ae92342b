package domain

// EmailMessage is a rendered HTML message addressed to a single recipient.
type EmailMessage struct {
	Subject   string
	Recipient string
	HTMLBody  string
}
