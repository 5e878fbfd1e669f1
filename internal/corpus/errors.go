package corpus

import (
	"fmt"

	"vxextract/internal/services"
)

func invalid(field, value, reason string) error {
	return services.Wrap(services.ErrValidation, "corpus", "validate "+field, fmt.Sprintf("%s %q %s", field, value, reason), nil)
}
