package runbook

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetward/remediator/pkg/types"
)

func allActionsKnown(string) bool { return true }

func writeRunbook(dir, name, contents string) {
	Expect(os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644)).To(Succeed())
}

const imagePullDoc = `---
runbook_id: RB_IMAGEPULL
alertname: KubePodImagePullBackOff
title: Image pull backoff
description: Diagnose and repair a stuck image pull.
workflow:
  - action_id: get_pod_events
  - action_id: check_imagepullbackoff
    when: events.imagepull_hint
  - action_id: patch_image
    when: imagepull.imagepull_detected
metadata:
  fallback_image: "us-docker.pkg.dev/google-samples/containers/gke/hello-app:1.0"
  owner_team: platform
---

Runs the standard image-pull remediation.
`

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "runbooks")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	Context("with a well-formed runbook document", func() {
		BeforeEach(func() {
			writeRunbook(dir, "imagepull.md", imagePullDoc)
		})

		It("loads the table keyed by runbook_id", func() {
			table, err := Load(dir, allActionsKnown)
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Count()).To(Equal(1))

			rb, ok := table.Get(types.RBImagePull)
			Expect(ok).To(BeTrue())
			Expect(rb.AlertName).To(Equal("KubePodImagePullBackOff"))
			Expect(rb.Workflow).To(HaveLen(3))
			Expect(rb.Workflow[1].When).NotTo(BeNil())
			Expect(rb.Workflow[1].When.Alias).To(Equal("events"))
			Expect(rb.Metadata.FallbackImage).To(Equal("us-docker.pkg.dev/google-samples/containers/gke/hello-app:1.0"))
			Expect(rb.Metadata.OwnerTeam).To(Equal("platform"))
		})
	})

	Context("when an action_id is not in the Tool Registry", func() {
		BeforeEach(func() {
			writeRunbook(dir, "imagepull.md", imagePullDoc)
		})

		It("fails to load", func() {
			_, err := Load(dir, func(id string) bool { return id != "patch_image" })
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown action_id"))
		})
	})

	Context("when two files declare the same runbook_id", func() {
		BeforeEach(func() {
			writeRunbook(dir, "a.md", imagePullDoc)
			writeRunbook(dir, "b.md", imagePullDoc)
		})

		It("fails with a duplicate error", func() {
			_, err := Load(dir, allActionsKnown)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("duplicate runbook_id"))
		})
	})

	Context("when the front matter delimiter is missing", func() {
		BeforeEach(func() {
			writeRunbook(dir, "broken.md", "no front matter here\n")
		})

		It("fails to load", func() {
			_, err := Load(dir, allActionsKnown)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when a gate expression is malformed", func() {
		BeforeEach(func() {
			writeRunbook(dir, "broken.md", `---
runbook_id: RB_OOM
alertname: KubeContainerOOMKilled
title: OOM
description: x
workflow:
  - action_id: check_oom
    when: not-a-gate
---
`)
		})

		It("fails to load", func() {
			_, err := Load(dir, allActionsKnown)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when the directory does not exist", func() {
		It("fails to load", func() {
			_, err := Load(filepath.Join(dir, "missing"), allActionsKnown)
			Expect(err).To(HaveOccurred())
		})
	})
})
