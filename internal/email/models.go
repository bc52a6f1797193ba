package email

// Message is one outgoing email
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is a file carried inline with a message
type Attachment struct {
	Filename string
	Content  []byte
}

// StatementEmail is a rendered statement addressed to its recipient
type StatementEmail struct {
	ToAddress     string
	RecipientName string
	Period        string
	Filename      string
	Content       []byte
}
