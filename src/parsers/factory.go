package parsers

import (
	"fmt"

	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/parsers/bcp"
)

func GetParser(template models.Template) (Parser, error) {
	switch template {
	case models.TemplateAccountTransfer:
		return bcp.NewTransferParser(), nil
	case models.TemplateFeeCommission:
		return bcp.NewFeeParser(), nil
	case models.TemplateOnlinePurchase:
		return bcp.NewPurchaseParser(), nil
	case models.TemplateServicePayment:
		return bcp.NewServiceParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for template: %s", template)
	}
}

// DefaultDispatchOrder is the order the ingestion service tries templates
// in: the templates with the most specific amount labels go first, the
// transfer template last because its labels are the most generic and would
// otherwise shadow the others.
func DefaultDispatchOrder() []models.Template {
	return []models.Template{
		models.TemplateOnlinePurchase,
		models.TemplateServicePayment,
		models.TemplateFeeCommission,
		models.TemplateAccountTransfer,
	}
}
