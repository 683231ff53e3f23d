package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridglance/gridglance/pkg/types"
)

type octopusResponse struct {
	Results *[]octopusRate `json:"results"`
	Detail  string         `json:"detail"`
}

type octopusRate struct {
	ValidFrom   *string  `json:"valid_from"`
	ValidTo     *string  `json:"valid_to"`
	ValueIncVAT *float64 `json:"value_inc_vat"`
}

// DecodeOctopus decodes an Octopus Energy unit rates response. The price
// including VAT is the actual value; the feed has no forecast.
func DecodeOctopus(body []byte) ([]types.IntervalRecord, error) {
	var resp octopusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode octopus response: %v", ErrParse, err)
	}
	if resp.Results == nil {
		if resp.Detail != "" {
			return nil, fmt.Errorf("%w: octopus response has no results: %s", ErrMissingField, resp.Detail)
		}
		return nil, fmt.Errorf("%w: octopus response has no results", ErrMissingField)
	}

	records := make([]types.IntervalRecord, 0, len(*resp.Results))
	for i, rate := range *resp.Results {
		if rate.ValidFrom == nil || rate.ValidTo == nil || rate.ValueIncVAT == nil {
			return nil, fmt.Errorf("%w: octopus result %d is missing valid_from, valid_to or value_inc_vat", ErrMissingField, i)
		}
		from, err := parseTime(time.RFC3339, *rate.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: octopus result %d valid_from: %v", ErrParse, i, err)
		}
		to, err := parseTime(time.RFC3339, *rate.ValidTo)
		if err != nil {
			return nil, fmt.Errorf("%w: octopus result %d valid_to: %v", ErrParse, i, err)
		}
		records = append(records, types.IntervalRecord{
			ValidFrom: from,
			ValidTo:   to,
			Actual:    types.Float(*rate.ValueIncVAT),
		})
	}
	return records, nil
}
