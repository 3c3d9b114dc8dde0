package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/planloop/internal/retry"
	"github.com/planloop/pkg/models"
)

// completer is the minimal surface we need from a model connection.
// *Connector satisfies it; tests substitute a stub.
type completer interface {
	Call(ctx context.Context, input string) (string, error)
}

// LangchainGateway implements Gateway on top of a langchaingo connector
// with retry, rate limiting, and envelope repair.
type LangchainGateway struct {
	client      completer
	retryConfig retry.Config
	limiter     *rate.Limiter
}

// NewLangchainGateway wraps a connector with gateway resiliency. The
// limiter paces outbound calls; pass nil to disable pacing.
func NewLangchainGateway(client completer, retryConfig retry.Config, limiter *rate.Limiter) *LangchainGateway {
	return &LangchainGateway{
		client:      client,
		retryConfig: retryConfig,
		limiter:     limiter,
	}
}

// NewLangchainGatewayWithDefaults uses gateway-tuned retries and a
// 1 req/s limiter with small bursts.
func NewLangchainGatewayWithDefaults(client completer) *LangchainGateway {
	return NewLangchainGateway(client, retry.GatewayConfig(), rate.NewLimiter(rate.Limit(1), 3))
}

// ProposeOrContinue runs one model turn: build the prompt, call the
// model with backoff, and decode the envelope. Parse failures count as
// retryable because a fresh completion usually fixes them.
func (g *LangchainGateway) ProposeOrContinue(ctx context.Context, history []models.Message, slots models.Slots, mode models.PlanMode) (*TurnProposal, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrGatewayFailure, err)
		}
	}

	prompt := BuildTurnPrompt(history, slots, mode)

	var proposal *TurnProposal
	result := retry.Do(ctx, g.retryConfig, func() error {
		raw, err := g.client.Call(ctx, prompt)
		if err != nil {
			return err
		}

		parsed, parseErr := ParseTurnProposal(raw)
		if parseErr != nil {
			// Reported as a transient condition so retry.Do tries again.
			return fmt.Errorf("temporary failure decoding model response: %v", parseErr)
		}
		proposal = parsed
		return nil
	})

	if !result.Success {
		log.Error().
			Err(result.LastError).
			Int("attempts", result.Attempts).
			Dur("total", result.TotalDuration).
			Msg("model gateway call failed")
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayFailure, result.LastError)
	}

	log.Debug().
		Int("attempts", result.Attempts).
		Bool("ready", proposal.ReadyToGenerate).
		Dur("total", result.TotalDuration).
		Msg("model gateway turn complete")

	return proposal, nil
}
