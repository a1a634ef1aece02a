package adjudicate

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/richardpark-msft/vigil/internal/models"
	"github.com/richardpark-msft/vigil/internal/recovery"
)

// defaultConfidence is assumed when a response omits the confidence field.
const defaultConfidence = 0.5

// parseAdjudication decodes a single-step verification response.
func parseAdjudication(text string) (models.Adjudication, error) {
	recovered, err := recovery.Recover(text)
	if err != nil {
		return models.Adjudication{}, err
	}

	obj, ok := recovered.Value.(map[string]any)
	if !ok {
		return models.Adjudication{}, fmt.Errorf("adjudication response is not a JSON object")
	}
	return decodeAdjudication(obj)
}

// parseBatchAdjudication decodes a batch verification response. Any element
// that is not a decodable object fails the whole batch; the caller falls
// back to conservative verdicts for every step.
func parseBatchAdjudication(text string) ([]models.Adjudication, error) {
	recovered, err := recovery.Recover(text)
	if err != nil {
		return nil, err
	}

	list, ok := recovered.Value.([]any)
	if !ok {
		return nil, fmt.Errorf("adjudication response is not a JSON array")
	}

	adjudications := make([]models.Adjudication, 0, len(list))
	for i, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("batch element %d is not a JSON object", i)
		}
		adj, err := decodeAdjudication(obj)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		adjudications = append(adjudications, adj)
	}
	return adjudications, nil
}

// decodeAdjudication converts one recovered object into a typed
// adjudication. Missing confidence defaults to 0.5; unknown statuses
// normalize to uncertain.
func decodeAdjudication(obj map[string]any) (models.Adjudication, error) {
	if v, ok := obj["confidence"]; !ok || v == nil {
		obj["confidence"] = defaultConfidence
	}

	var adj models.Adjudication
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &adj,
	})
	if err != nil {
		return adj, err
	}
	if err := decoder.Decode(obj); err != nil {
		return adj, err
	}

	adj.Status = models.ParseStepStatus(string(adj.Status))
	return adj, nil
}
