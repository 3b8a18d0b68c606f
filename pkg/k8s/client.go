// Package k8s wraps a Kubernetes clientset behind a narrow interface the
// tool registry depends on: pod/deployment/node reads and the handful of
// mutations the remediation tool set issues, plus the ownership-chain walk
// every Deployment-mutating tool needs.
package k8s

import (
	"context"
	"fmt"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv1beta1 "k8s.io/metrics/pkg/client/clientset/versioned"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fleetward/remediator/internal/config"
)

// BasicClient covers reads and the single-resource mutations the tool set
// issues directly: no ownership resolution, no multi-step orchestration.
type BasicClient interface {
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	DeletePod(ctx context.Context, namespace, name string) error
	ListPodsWithLabel(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error)
	ListEvents(ctx context.Context, namespace, fieldSelector string) (*corev1.EventList, error)
	GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error)
	GetNode(ctx context.Context, name string) (*corev1.Node, error)
	CountReadyNodes(ctx context.Context) (int, error)
	PatchDeploymentImage(ctx context.Context, namespace, name, container, image string) error
	PatchDeploymentMemoryLimit(ctx context.Context, namespace, name, container string, limit string) error
	PatchNodeUnschedulable(ctx context.Context, name string, unschedulable bool) error
	PodMetrics(ctx context.Context, namespace, name string) (map[string]string, bool)
	IsHealthy() bool
}

// AdvancedClient covers multi-step orchestration that composes BasicClient
// operations: ownership-chain resolution and node drain.
type AdvancedClient interface {
	ResolveOwningDeployment(ctx context.Context, namespace, pod string) (string, error)
	ResolveContainer(pod *corev1.Pod, labelContainer string) (string, error)
	DrainNode(ctx context.Context, name string) (DrainResult, error)
}

// Client is the full surface the tool registry is built against.
type Client interface {
	BasicClient
	AdvancedClient
}

// DrainResult is drain_node's counters, per spec.md §2.3's best-effort contract.
type DrainResult struct {
	Attempted int
	Evicted   int
	Skipped   int
	Failed    int
}

type client struct {
	*basicClient
	*advancedClient
}

// NewClient builds the cluster client per internal/config's Kubernetes
// section: in-cluster config by default, kubeconfig override in dev, or an
// OIDC client-credentials bearer token when CLUSTER_AUTH_MODE=oidc.
func NewClient(cfg config.KubernetesConfig, zlog *zap.Logger) (Client, error) {
	restCfg, err := buildRESTConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	var metricsClient metricsv1beta1.Interface
	if mc, err := metricsv1beta1.NewForConfig(restCfg); err == nil {
		metricsClient = mc
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}

	basic := &basicClient{
		clientset:     clientset,
		metricsClient: metricsClient,
		namespace:     namespace,
		log:           zapr.NewLogger(zlog).WithName("k8s"),
	}
	advanced := &advancedClient{basicClient: basic}

	return &client{basicClient: basic, advancedClient: advanced}, nil
}

func buildRESTConfig(cfg config.KubernetesConfig) (*rest.Config, error) {
	if cfg.AuthMode == "oidc" {
		return buildOIDCRESTConfig(cfg)
	}

	if cfg.Context != "" || cfg.Kubeconfig != "" {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		if cfg.Kubeconfig != "" {
			loadingRules.ExplicitPath = cfg.Kubeconfig
		}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
		return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	}

	if restCfg, err := rest.InClusterConfig(); err == nil {
		return restCfg, nil
	}

	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		clientcmd.NewDefaultClientConfigLoadingRules(),
		&clientcmd.ConfigOverrides{},
	).ClientConfig()
}

// buildOIDCRESTConfig authenticates to the cluster API via a client-credentials
// OIDC token source rather than kubeconfig or in-cluster service account
// tokens — for clusters fronted by an OIDC-aware API proxy. Additive: never
// required, selected only by CLUSTER_AUTH_MODE=oidc.
func buildOIDCRESTConfig(cfg config.KubernetesConfig) (*rest.Config, error) {
	if cfg.OIDCTokenURL == "" || cfg.OIDCClientID == "" || cfg.OIDCClientSecret == "" {
		return nil, fmt.Errorf("oidc auth mode requires token_url, client_id and client_secret")
	}
	ccCfg := clientcredentials.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		TokenURL:     cfg.OIDCTokenURL,
	}
	token, err := ccCfg.Token(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch oidc token: %w", err)
	}

	restCfg := &rest.Config{
		Host:        cfg.APIServerHost,
		BearerToken: token.AccessToken,
	}
	if cfg.Insecure {
		restCfg.TLSClientConfig.Insecure = true
	}
	return restCfg, nil
}
