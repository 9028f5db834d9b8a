package device

import (
	"context"
	"time"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/historize"
)

// Config gathers the identity, network, and assembly configuration a fresh
// device object model is built from.
type Config struct {
	Identity  IdentityConfig
	Network   NetworkConfig
	Link      LinkConfig
	Assembly  []AssemblyInstance
	Catalog   *Catalog
}

// Device is the assembled standard-class object model plus the Logix tag
// namespace and Template registry layered on top of a single cip.Registry.
type Device struct {
	Registry   *cip.Registry
	Tags       *TagNamespace
	Templates  *cip.TemplateRegistry
	Catalog    *Catalog
	Dispatcher *cip.Dispatcher

	// Sink, when set, receives a historize.Record for every successful
	// Logix tag write (§4 Supplemental feature #5), best-effort and never
	// blocking the CIP reply.
	Sink historize.Sink

	identity IdentityConfig
	network  NetworkConfig
}

// publishWrite best-effort forwards a successful tag write to d.Sink, if
// configured. It is called after the write has already been committed to
// the attribute's backing buffer, so a sink outage never affects the CIP
// reply.
func (d *Device) publishWrite(instance int) {
	if d.Sink == nil {
		return
	}
	name, ok := d.Tags.NameByInstance(instance)
	if !ok {
		return
	}
	tg, ok := d.Tags.Lookup(name)
	if !ok {
		return
	}
	values, err := tg.Value()
	if err != nil {
		return
	}
	typeName := "STRUCT"
	if tg.Template == nil {
		typeName = cip.Name(tg.Type)
	}
	var value any = values
	if len(values) == 1 {
		value = values[0]
	}
	sink := d.Sink
	rec := historize.Record{
		Tag: name, Type: typeName, Value: value, Writable: true, Timestamp: time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sink.Publish(ctx, rec)
	}()
}

// New assembles a complete device object model: Identity, Message Router,
// Assembly, Connection Manager, TCP/IP Interface, Ethernet Link, Symbol,
// and Template classes, plus a Dispatcher wired to resolve symbolic tag
// paths through the Symbol class.
func New(cfg Config) *Device {
	reg := cip.NewRegistry()

	reg.Register(NewIdentityClass(cfg.Identity))
	reg.Register(NewMessageRouterClass([]int{
		cip.ClassIdentity, cip.ClassMessageRouter, cip.ClassAssembly,
		cip.ClassConnectionManager, cip.ClassSymbol, cip.ClassTCPIPInterface,
		cip.ClassEthernetLink,
	}))
	if len(cfg.Assembly) > 0 {
		reg.Register(NewAssemblyClass(cfg.Assembly))
	}
	reg.Register(NewConnectionManagerClass())
	reg.Register(NewTCPIPInterfaceClass(cfg.Network))
	reg.Register(NewEthernetLinkClass(cfg.Link))

	tags := NewTagNamespace(reg)
	templates := cip.NewTemplateRegistry(reg)

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	d := &Device{
		Registry: reg, Tags: tags, Templates: templates, Catalog: catalog,
		identity: cfg.Identity, network: cfg.Network,
	}
	d.Dispatcher = &cip.Dispatcher{
		Registry:    reg,
		TagResolver: tags.Resolve,
		Serve:       d.serve,
	}
	return d
}

// serve is the cip.Dispatcher.Serve hook: it resolves an already-triple'd
// request against the registry and runs the requested service.
func (d *Device) serve(class, instance, attribute int, req *cip.Request) *cip.Response {
	switch req.Service {
	case cip.SvcGetAttributeAll:
		return d.getAttributeAll(class, instance, req.Service)
	case cip.SvcGetAttributeSingle:
		return d.getAttributeSingle(class, instance, attribute, req.Service)
	case cip.SvcSetAttributeSingle:
		return d.setAttributeSingle(class, instance, attribute, req)
	case cip.SvcGetInstanceAttrList:
		return d.getInstanceAttributeList(class, req)
	case cip.SvcReadTag:
		return d.readTag(class, instance, req)
	case cip.SvcReadTagFragmented:
		return d.readTagFragmented(class, instance, req)
	case cip.SvcWriteTag:
		return d.writeTag(class, instance, req)
	case cip.SvcWriteTagFragmented:
		return d.writeTagFragmented(class, instance, req)
	case cip.SvcReset:
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess}
	default:
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusServiceNotSupp}
	}
}

func (d *Device) getAttributeAll(class, instance int, service byte) *cip.Response {
	in, err := d.Registry.ResolveInstance(class, instance)
	if err != nil {
		return errResponse(service, err)
	}
	return &cip.Response{Service: cip.ReplyService(service), Status: cip.StatusSuccess, Data: in.GetAttributeAll()}
}

func (d *Device) getAttributeSingle(class, instance, attribute int, service byte) *cip.Response {
	a, err := d.Registry.Resolve(class, instance, attribute)
	if err != nil {
		return errResponse(service, err)
	}
	return &cip.Response{Service: cip.ReplyService(service), Status: cip.StatusSuccess, Data: a.Bytes()}
}

func (d *Device) setAttributeSingle(class, instance, attribute int, req *cip.Request) *cip.Response {
	a, err := d.Registry.Resolve(class, instance, attribute)
	if err != nil {
		return errResponse(req.Service, err)
	}
	if err := a.WriteAt(0, req.Data); err != nil {
		return errResponse(req.Service, err)
	}
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess}
}

func (d *Device) getInstanceAttributeList(class int, req *cip.Request) *cip.Response {
	c, ok := d.Registry.Class(class)
	if !ok {
		return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusPathUnknown}
	}
	instances := c.Instances(1, 0)
	out := make([]byte, 0, len(instances)*4)
	for _, no := range instances {
		out = append(out, byte(no), byte(no>>8), byte(no>>16), byte(no>>24))
	}
	return &cip.Response{Service: cip.ReplyService(req.Service), Status: cip.StatusSuccess, Data: out}
}

func errResponse(service byte, err error) *cip.Response {
	if se, ok := err.(*cip.ServiceError); ok {
		return &cip.Response{Service: cip.ReplyService(service), Status: se.Status}
	}
	return &cip.Response{Service: cip.ReplyService(service), Status: cip.StatusPathSegmentError}
}
