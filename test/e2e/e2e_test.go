/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/brennie/wake-on-lan-hook/internal/config"
	"github.com/brennie/wake-on-lan-hook/internal/wol"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "wol-hookd e2e suite")
}

var _ = Describe("wol-hookd", Ordered, func() {
	var (
		tmpDir   string
		out1     string
		out2     string
		addr     *net.UDPAddr
		cancel   context.CancelFunc
		stopped  chan struct{}
		daemon   *wol.Daemon
		watched1 = "aa:bb:cc:dd:ee:ff"
		watched2 = "11:22:33:44:55:66"
	)

	BeforeAll(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "wol-hookd-e2e")
		Expect(err).NotTo(HaveOccurred())
		out1 = filepath.Join(tmpDir, "hook1.out")
		out2 = filepath.Join(tmpDir, "hook2.out")

		By("loading configuration the way the daemon does")
		cfgYAML := fmt.Sprintf(`
bindAddress: 127.0.0.1
ports: [0]
statusAddress: 127.0.0.1:0
targets:
  - mac: %s
    hook:
      command: /bin/sh
      args: ["-c", "echo $WOL_MAC >> %s"]
  - mac: %s
    hook:
      command: /bin/sh
      args: ["-c", "echo $WOL_MAC >> %s"]
`, watched1, out1, watched2, out2)

		cfg, err := config.Parse([]byte(cfgYAML))
		Expect(err).NotTo(HaveOccurred())

		targets := wol.NewTargetSet(logr.Discard())
		Expect(cfg.TargetSet(targets)).To(Succeed())

		By("starting the daemon on an ephemeral loopback port")
		daemon = wol.NewDaemon(wol.Options{
			BindIP:        cfg.BindIP(),
			Ports:         cfg.Ports,
			StatusAddress: cfg.StatusAddress,
		}, targets, wol.NewExecDispatcher(logr.Discard()), logr.Discard())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		stopped = make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(stopped)
			Expect(daemon.Run(ctx)).To(Succeed())
		}()

		Eventually(daemon.Addrs, 5*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())
		addr = daemon.Addrs()[0].(*net.UDPAddr)
	})

	AfterAll(func() {
		if cancel != nil {
			cancel()
			Eventually(stopped, 10*time.Second).Should(BeClosed())
		}
		if tmpDir != "" {
			Expect(os.RemoveAll(tmpDir)).To(Succeed())
		}
	})

	It("runs the hook for a watched MAC", func() {
		By("sending a magic packet for the first target")
		sendMagicPacket(addr, watched1)

		Eventually(func() []string {
			return hookInvocations(out1)
		}, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{watched1}))
	})

	It("ignores packets for unwatched MACs", func() {
		By("sending a magic packet for an unwatched MAC, then a watched sentinel")
		sendMagicPacket(addr, "de:ad:be:ef:00:01")
		sendMagicPacket(addr, watched2)

		By("waiting for the sentinel hook to run")
		Eventually(func() []string {
			return hookInvocations(out2)
		}, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{watched2}))

		By("checking the unwatched MAC triggered nothing")
		Expect(hookInvocations(out1)).To(HaveLen(1))
	})

	It("runs the hook once per retransmitted packet", func() {
		By("sending the same magic packet three times")
		for i := 0; i < 3; i++ {
			sendMagicPacket(addr, watched1)
		}

		Eventually(func() []string {
			return hookInvocations(out1)
		}, 5*time.Second, 50*time.Millisecond).Should(HaveLen(4)) // 1 from the first spec + 3
	})

	It("keeps dispatching after malformed datagrams", func() {
		By("sending garbage between two valid packets")
		sendDatagram(addr, []byte("not a magic packet"))
		sendMagicPacket(addr, watched2)

		Eventually(func() []string {
			return hookInvocations(out2)
		}, 5*time.Second, 50*time.Millisecond).Should(HaveLen(2))
	})
})

func sendMagicPacket(addr *net.UDPAddr, mac string) {
	hw, err := net.ParseMAC(mac)
	Expect(err).NotTo(HaveOccurred())

	packet, err := wol.BuildMagicPacket(hw)
	Expect(err).NotTo(HaveOccurred())

	sendDatagram(addr, packet)
}

func sendDatagram(addr *net.UDPAddr, payload []byte) {
	conn, err := net.DialUDP("udp4", nil, addr)
	Expect(err).NotTo(HaveOccurred())
	defer conn.Close()

	_, err = conn.Write(payload)
	Expect(err).NotTo(HaveOccurred())
}

// hookInvocations returns one entry per hook run, in order; the test hooks
// append the matched MAC to their output file.
func hookInvocations(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}
