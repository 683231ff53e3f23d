package feed

import (
	"encoding/json"
	"fmt"

	"github.com/gridglance/gridglance/pkg/types"
)

// carbon intensity timestamps have minute precision
const carbonTimeLayout = "2006-01-02T15:04Z"

type carbonResponse struct {
	Data  *[]carbonEntry `json:"data"`
	Error *apiError      `json:"error"`
}

type carbonEntry struct {
	From      *string `json:"from"`
	To        *string `json:"to"`
	Intensity *struct {
		Actual   *float64 `json:"actual"`
		Forecast *float64 `json:"forecast"`
	} `json:"intensity"`
}

// DecodeCarbonIntensity decodes a carbon intensity response. The actual
// intensity is null until it has been measured, in which case only the
// forecast is kept.
func DecodeCarbonIntensity(body []byte) ([]types.IntervalRecord, error) {
	var resp carbonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode carbon intensity response: %v", ErrParse, err)
	}
	if resp.Data == nil {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("%w: carbon intensity response has no data: %s", ErrMissingField, resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: carbon intensity response has no data", ErrMissingField)
	}

	records := make([]types.IntervalRecord, 0, len(*resp.Data))
	for i, entry := range *resp.Data {
		if entry.From == nil || entry.To == nil || entry.Intensity == nil {
			return nil, fmt.Errorf("%w: carbon intensity entry %d is missing from, to or intensity", ErrMissingField, i)
		}
		from, err := parseTime(carbonTimeLayout, *entry.From)
		if err != nil {
			return nil, fmt.Errorf("%w: carbon intensity entry %d from: %v", ErrParse, i, err)
		}
		to, err := parseTime(carbonTimeLayout, *entry.To)
		if err != nil {
			return nil, fmt.Errorf("%w: carbon intensity entry %d to: %v", ErrParse, i, err)
		}
		records = append(records, types.IntervalRecord{
			ValidFrom: from,
			ValidTo:   to,
			Actual:    entry.Intensity.Actual,
			Forecast:  entry.Intensity.Forecast,
		})
	}
	return records, nil
}
