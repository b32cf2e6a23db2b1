package servicediscover

import (
	"context"
	"fmt"
	"strconv"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module registers the HTTP server in Consul for the lifetime of the
// process. It does nothing unless CONSUL.ADDR is set.
var Module = fx.Module("servicediscover", fx.Invoke(registerConsul))

type ServiceRegistry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	service   *api.AgentServiceRegistration
}

var _ ServiceRegistry = (*ConsulRegistry)(nil)

// NewRegistration describes the service with a readiness check against
// /readyz.
func NewRegistration(serviceName, serviceID, host string, port int, tags ...string) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Tags:    tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/readyz", host, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func NewConsulRegistry(address string, service *api.AgentServiceRegistration) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &ConsulRegistry{
		client:    client,
		serviceID: service.ID,
		service:   service,
	}, nil
}

func (r *ConsulRegistry) Register(ctx context.Context) error {
	return r.client.Agent().ServiceRegister(r.service)
}

func (r *ConsulRegistry) Deregister(ctx context.Context) error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}

func registerConsul(lc fx.Lifecycle, cfg *config.Config, node *snowflake.Node) error {
	if cfg.Consul.Addr == "" {
		return nil
	}

	port, err := strconv.Atoi(cfg.Server.Addr)
	if err != nil {
		return errutil.Configuration("HTTP_SERVER.ADDR must be a port number for consul registration", err)
	}
	host := cfg.Consul.ServiceHost
	if host == "" {
		host = "127.0.0.1"
	}

	id := fmt.Sprintf("%s-%d", cfg.AppName, node.Generate().Int64())
	registry, err := NewConsulRegistry(cfg.Consul.Addr, NewRegistration(cfg.AppName, id, host, port, cfg.AppEnv, cfg.AppVersion))
	if err != nil {
		return errutil.Configuration("build consul client", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("registering service in consul", zap.String("service_id", id), zap.String("consul_addr", cfg.Consul.Addr))
			return registry.Register(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return registry.Deregister(ctx)
		},
	})
	return nil
}
