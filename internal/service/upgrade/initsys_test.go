package upgrade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestServiceCommand covers the full init-system command mapping for both verbs.
func TestServiceCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		initSystem string
		verb       string
		want       []string
	}{
		{"systemd", "stop", []string{"systemctl", "stop", "apache2"}},
		{"systemctl", "start", []string{"systemctl", "start", "apache2"}},
		{"service", "stop", []string{"service", "apache2", "stop"}},
		{"generic", "start", []string{"service", "apache2", "start"}},
		{"init.d", "stop", []string{"/etc/init.d/apache2", "stop"}},
		{"openrc", "start", []string{"/etc/init.d/apache2", "start"}},
		{"rc.d", "stop", []string{"/etc/rc.d/apache2", "stop"}},
		{"upstart", "start", []string{"initctl", "start", "apache2"}},
		{"finit", "stop", []string{"initctl", "stop", "apache2"}},
		{"initctl", "start", []string{"initctl", "start", "apache2"}},
		{"epoch", "stop", []string{"epoch", "stop", "apache2"}},
	}
	for _, c := range cases {
		got, err := serviceCommand(c.initSystem, "apache2", c.verb)
		require.NoError(t, err, c.initSystem)
		require.Equal(t, c.want, got)
	}

	_, err := serviceCommand("launchd", "apache2", "stop")
	require.ErrorIs(t, err, errUnknownInitSystem)
}
