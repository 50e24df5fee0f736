package mongodb

import (
	"context"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
)

// Config reads and writes queue policy values in a config collection.
// It implements the queuectl.Config interface.
type Config struct {
	coll *mgo.Collection
}

type setting struct {
	Key   string `bson:"_id"`
	Value string
}

// Get returns the value for key, or def if the key is not set.
func (c *Config) Get(ctx context.Context, key, def string) (string, error) {
	var s setting
	err := c.coll.FindId(key).One(&s)
	if err == mgo.ErrNotFound {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// Set stores the value for key, overwriting any previous value.
func (c *Config) Set(ctx context.Context, key, value string) error {
	_, err := c.coll.UpsertId(key, &setting{Key: key, Value: value})
	return err
}

// All returns every key/value pair currently set.
func (c *Config) All(ctx context.Context) (map[string]string, error) {
	var list []*setting
	if err := c.coll.Find(bson.M{}).All(&list); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, s := range list {
		values[s.Key] = s.Value
	}
	return values, nil
}
