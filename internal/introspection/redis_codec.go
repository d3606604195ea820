package introspection

import "encoding/json"

func encodeRedisPayload(p redisPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRedisPayload(raw string) (redisPayload, error) {
	var p redisPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return redisPayload{}, err
	}
	return p, nil
}
