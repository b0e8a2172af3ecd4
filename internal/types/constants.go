package types

const (
	ContextActorKey = "actor"

	DefaultPageSize = 20
)
