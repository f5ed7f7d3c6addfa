package registry

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/resilience"
	"github.com/faaxis/advisor-calc/pkg/notion"
)

// Notion property names of the CMS databases.
const (
	propFirm         = "Firm"
	propUpfrontMin   = "Upfront Min"
	propUpfrontMax   = "Upfront Max"
	propBackendMin   = "Backend Min"
	propBackendMax   = "Backend Max"
	propTotalDealMin = "Total Deal Min"
	propTotalDealMax = "Total Deal Max"
	propNotes        = "Notes"
	propParamName    = "Param Name"
	propParamValue   = "Value"
)

// LoadNotion reads deals and parameters from the CMS databases. Malformed
// pages are skipped with a warning.
func LoadNotion(ctx context.Context, client notion.Client, dealsDB, paramsDB string) ([]model.FirmDeal, []model.FirmParameter, error) {
	pages, err := notion.QueryAll(ctx, client, dealsDB, nil)
	if err != nil {
		return nil, nil, eris.Wrap(classifyNotion(err), "registry: load notion deals")
	}

	var deals []model.FirmDeal
	for _, p := range pages {
		d, err := parseDealPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed deal page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		deals = append(deals, d)
	}

	if paramsDB == "" {
		return deals, nil, nil
	}

	pages, err = notion.QueryAll(ctx, client, paramsDB, nil)
	if err != nil {
		return nil, nil, eris.Wrap(classifyNotion(err), "registry: load notion parameters")
	}

	var params []model.FirmParameter
	for _, p := range pages {
		fp, err := parseParamPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed parameter page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		params = append(params, fp)
	}

	return deals, params, nil
}

// NotionSource reads the registry from Notion on every snapshot.
type NotionSource struct {
	Client   notion.Client
	DealsDB  string
	ParamsDB string
}

// Snapshot implements Source.
func (s NotionSource) Snapshot(ctx context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
	return LoadNotion(ctx, s.Client, s.DealsDB, s.ParamsDB)
}

// classifyNotion marks rate limiting and upstream 5xx responses as
// retryable.
func classifyNotion(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Status) {
		return resilience.NewTransientError(err, apiErr.Status)
	}
	return err
}

func parseDealPage(p notionapi.Page) (model.FirmDeal, error) {
	d := model.FirmDeal{
		Firm:         textProp(p.Properties, propFirm),
		UpfrontMin:   numberProp(p.Properties, propUpfrontMin),
		UpfrontMax:   numberProp(p.Properties, propUpfrontMax),
		BackendMin:   numberProp(p.Properties, propBackendMin),
		BackendMax:   numberProp(p.Properties, propBackendMax),
		TotalDealMin: numberProp(p.Properties, propTotalDealMin),
		TotalDealMax: numberProp(p.Properties, propTotalDealMax),
		Notes:        textProp(p.Properties, propNotes),
		UpdatedAt:    p.LastEditedTime,
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

func parseParamPage(p notionapi.Page) (model.FirmParameter, error) {
	fp := model.FirmParameter{
		ID:        string(p.ID),
		Firm:      textProp(p.Properties, propFirm),
		ParamName: textProp(p.Properties, propParamName),
		Notes:     textProp(p.Properties, propNotes),
	}
	if fp.ParamName == "" {
		return fp, eris.New("missing Param Name property")
	}
	if fp.Firm == "" {
		return fp, eris.New("missing Firm property")
	}

	switch v := p.Properties[propParamValue].(type) {
	case *notionapi.NumberProperty:
		fp.Value = model.NumberValue(v.Number)
	case *notionapi.RichTextProperty:
		fp.Value = model.TextValue(plainText(v.RichText))
	case *notionapi.TitleProperty:
		fp.Value = model.TextValue(plainText(v.Title))
	default:
		return fp, eris.New("missing Value property")
	}
	return fp, nil
}

// textProp reads a title, rich text or select property as plain text.
func textProp(props notionapi.Properties, name string) string {
	switch v := props[name].(type) {
	case *notionapi.TitleProperty:
		return strings.TrimSpace(plainText(v.Title))
	case *notionapi.RichTextProperty:
		return strings.TrimSpace(plainText(v.RichText))
	case *notionapi.SelectProperty:
		return v.Select.Name
	}
	return ""
}

// numberProp reads a number property, accepting numeric text such as "25%".
func numberProp(props notionapi.Properties, name string) float64 {
	switch v := props[name].(type) {
	case *notionapi.NumberProperty:
		return v.Number
	case *notionapi.RichTextProperty:
		s := strings.TrimSuffix(strings.TrimSpace(plainText(v.RichText)), "%")
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	return 0
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
