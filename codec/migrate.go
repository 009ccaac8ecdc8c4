package codec

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ndbkit/ndb/ndberr"
)

// UpgradeDecode decodes data into out, bridging a version gap via
// converters when the record's stored version does not match
// targetVersion. Returns *ndberr.Upgrade if no conversion chain reaches
// targetVersion from the stored version.
func (c *Codec) UpgradeDecode(data []byte, converters *Converters, targetVersion uint32, out interface{}) error {
	modelID, version, err := PeekHeader(data)
	if err != nil {
		return err
	}

	if version == targetVersion {
		return bson.Unmarshal(data[HeaderSize:], out)
	}

	var doc map[string]interface{}
	if err := bson.Unmarshal(data[HeaderSize:], &doc); err != nil {
		return fmt.Errorf("codec: unmarshal for upgrade: %w", err)
	}

	upgraded, err := converters.Upgrade(modelID, version, targetVersion, doc)
	if err != nil {
		return &ndberr.Upgrade{From: version, To: targetVersion}
	}

	body, err := bson.Marshal(upgraded)
	if err != nil {
		return fmt.Errorf("codec: marshal upgraded doc: %w", err)
	}
	return bson.Unmarshal(body, out)
}
