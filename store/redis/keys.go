package redis

// Key layout. Entities live under stageflow:* as JSON strings; the
// *:ids sets index them for listing.
const (
	definitionIDsKey = "stageflow:definitions:ids"
	instanceIDsKey   = "stageflow:instances:ids"
)

func definitionKey(defID string) string {
	return "stageflow:definition:" + defID
}

func instanceKey(instanceID string) string {
	return "stageflow:instance:" + instanceID
}
