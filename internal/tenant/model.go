// Package tenant manages apps, the isolated namespaces SDK users live in.
package tenant

import "time"

// KeyPrefix marks a publishable tenant key.
const KeyPrefix = "pk_"

// App is a tenant owned by a developer account.
type App struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	PublishableKey string    `json:"publishable_key"`
	CreatedAt      time.Time `json:"created_at"`
}
