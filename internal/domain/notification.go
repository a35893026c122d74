package domain

// Variant selects how a notification is styled.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient, fire-and-forget message for the user.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}
