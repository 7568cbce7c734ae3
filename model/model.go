package model

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var snowflakeNode *snowflake.Node

var Models = []interface{}{
	&User{}, &Request{}, &Attestation{},
	&DirectorSignatureConfig{}, &AuditLog{},
}

func init() {
	if err := InitIDGenerator(1); err != nil {
		panic(err)
	}
}

// InitIDGenerator sets the snowflake node used for primary keys. Instances sharing a
// database need distinct node ids.
func InitIDGenerator(nodeID int64) error {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	snowflakeNode = node
	return nil
}

func GenerateID() uint {
	return uint(snowflakeNode.Generate())
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
