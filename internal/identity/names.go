package identity

import "math/rand"

// Default display names, picked at random until the user chooses one.
var namePool = []string{
	"Whiskers", "Mittens", "Shadow", "Tiger", "Smokey",
	"Felix", "Oreo", "Luna", "Simba", "Cleo",
	"Boots", "Ginger", "Pepper", "Patches", "Tom",
	"Duchess", "Salem", "Biscuit", "Mochi", "Pumpkin",
}

// RandomName returns a random display name from the pool.
func RandomName() string {
	return namePool[rand.Intn(len(namePool))]
}
