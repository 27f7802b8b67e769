package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

func TestRenderForLead(t *testing.T) {
	tpl := "Olá ${name}! Empresas de ${industry} em ${location} como ${website} ${unknown}"

	full := &model.Lead{Name: "Acme", Industry: "varejo", Location: "Campinas", Website: "acme.com"}
	assert.Equal(t, "Olá Acme! Empresas de varejo em Campinas como acme.com ${unknown}", service.RenderForLead(tpl, full))

	empty := &model.Lead{Name: "  "}
	assert.Equal(t, "Olá você! Empresas de seu setor em sua região como seu site ${unknown}", service.RenderForLead(tpl, empty))
}

func TestRenderForLeadDoesNotExpandPlaceholdersInValues(t *testing.T) {
	lead := &model.Lead{Name: "${industry} Ltda", Industry: "varejo", Location: "${name}"}
	for i := 0; i < 50; i++ {
		assert.Equal(t, "${industry} Ltda / varejo / ${name}",
			service.RenderForLead("${name} / ${industry} / ${location}", lead))
	}
}

func TestSelectVariantFollowsAllocation(t *testing.T) {
	variants := []model.ABVariant{
		{ID: "A", AllocationPercent: 30},
		{ID: "B", AllocationPercent: 70},
	}
	counts := map[string]int{}
	const trials = 10000
	for i := 0; i < trials; i++ {
		v := service.SelectVariant(variants)
		require.NotNil(t, v)
		counts[v.ID]++
	}
	assert.InDelta(t, 0.30, float64(counts["A"])/trials, 0.03)
	assert.InDelta(t, 0.70, float64(counts["B"])/trials, 0.03)
}

func TestSelectVariantEdgeCases(t *testing.T) {
	assert.Nil(t, service.SelectVariant(nil))

	// Allocations that never reach the draw fall back to the first variant.
	zero := []model.ABVariant{{ID: "A"}, {ID: "B"}}
	for i := 0; i < 100; i++ {
		assert.Equal(t, "A", service.SelectVariant(zero).ID)
	}
}

func TestComputeRates(t *testing.T) {
	assert.Equal(t, service.Rates{}, service.ComputeRates(model.CampaignStats{}))
	assert.Equal(t,
		service.Rates{DeliveryRate: 67, ReplyRate: 50, ErrorRate: 33},
		service.ComputeRates(model.CampaignStats{Total: 3, Sent: 2, Failed: 1, Replied: 1}),
	)
}
