package webhook

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		NewStripeVerifier,
		func(v *StripeVerifier) Verifier { return v },
		NewProcessor,
	),
)
