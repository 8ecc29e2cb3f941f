package relay

import (
	"encoding/json"

	"wavechat/models"
)

func unmarshalPayload(evt models.Event, v interface{}) error {
	return json.Unmarshal(evt.Payload, v)
}
