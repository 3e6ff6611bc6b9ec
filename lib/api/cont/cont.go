package cont

import (
	"context"

	"churchreg/entity"
)

type ctxKey string

const actorDataKey ctxKey = "actorData"

func PutActor(c context.Context, actor *entity.Admin) context.Context {
	return context.WithValue(c, actorDataKey, *actor)
}

func GetActor(c context.Context) *entity.Admin {
	actor, ok := c.Value(actorDataKey).(entity.Admin)
	if !ok {
		return &entity.Admin{}
	}
	return &actor
}
