package domain

// Requirement is an amount of a resource needed to craft an item.
type Requirement struct {
	Resource string `json:"resource" yaml:"resource"`
	Amount   int    `json:"amount" yaml:"amount"`
}

// Item is a craftable entry of the catalog.
type Item struct {
	Name         string        `json:"name" yaml:"name"`
	Requirements []Requirement `json:"requirements" yaml:"requirements"`
}

// Character is a registered in-game entity owned by a user.
type Character struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}
