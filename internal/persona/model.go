package persona

// Persona is the bot's name, communication style and background.
type Persona struct {
	Name       string `json:"name" validate:"required,notblank"`
	Style      string `json:"style" validate:"required,notblank"`
	Background string `json:"background" validate:"required,notblank"`
}

// Defaults returns the persona used before an operator configures one.
func Defaults() Persona {
	return Persona{
		Name:       "SOLess Guide",
		Style:      "Helpful, knowledgeable about Solana and SOLess, technically accurate but approachable",
		Background: "Technical expert on the SOLess project and Solana ecosystem",
	}
}
