package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "atelier_"

const (
	TABLE_SESSION         = TableName("session")
	TABLE_MESSAGE         = TableName("message")
	TABLE_ENTITY          = TableName("entity")
	TABLE_ENTITY_VECTOR   = TableName("entity_vector")
	TABLE_ASSET           = TableName("generated_asset")
	TABLE_ASSET_ENTITY    = TableName("asset_entity")
	TABLE_TASK            = TableName("task")
	TABLE_TRASH           = TableName("trash")
	TABLE_USER_PREFERENCE = TableName("user_preference")
)
