package shell

import "strings"

const terraformUsage = "Usage: terraform <init|validate|fmt|plan|apply [-target=<node_id>]|destroy <node_id>|show|import <node_id>|state list>"

func (sh *Shell) terraform(args []string) {
	if len(args) == 0 {
		sh.println(terraformUsage)
		return
	}
	rec := sh.sim.Infra()

	switch args[0] {
	case "init":
		if err := rec.Init(); err != nil {
			sh.fail(err)
			return
		}
		sh.println("Terraform has been successfully initialized!")
	case "validate":
		if _, err := rec.Validate(); err != nil {
			sh.fail(err)
			return
		}
		sh.println("Success! The configuration is valid.")
	case "fmt":
		changed, err := rec.Format()
		if err != nil {
			sh.fail(err)
			return
		}
		if changed {
			sh.println("main.tf")
		} else {
			sh.println("main.tf is already formatted.")
		}
	case "plan":
		plan, err := rec.Plan()
		if err != nil {
			sh.fail(err)
			return
		}
		sh.println("%s", plan)
	case "apply":
		target := ""
		if len(args) > 1 {
			if !strings.HasPrefix(args[1], "-target=") {
				sh.println("Usage: terraform apply [-target=<node_id>]")
				return
			}
			target = strings.TrimPrefix(args[1], "-target=")
		}
		created, err := rec.Apply(target)
		if err != nil {
			sh.fail(err)
			return
		}
		if target != "" {
			sh.println("Node '%s' has been updated.", target)
		} else {
			sh.println("%d nodes have been provisioned.", created)
		}
	case "destroy":
		if len(args) != 2 {
			sh.println("Usage: terraform destroy <node_id>")
			return
		}
		if err := rec.Destroy(args[1]); err != nil {
			sh.fail(err)
			return
		}
		sh.println("Node '%s' destroyed.", args[1])
	case "show":
		sh.println("%s", strings.TrimRight(rec.Show(), "\n"))
	case "import":
		if len(args) != 2 {
			sh.println("Usage: terraform import <node_id>")
			return
		}
		if err := rec.Import(args[1]); err != nil {
			sh.fail(err)
			return
		}
		sh.println("Successfully imported '%s' into Terraform state.", args[1])
	case "state":
		if len(args) != 2 || args[1] != "list" {
			sh.println("Usage: terraform state list")
			return
		}
		ids := rec.StateList()
		if len(ids) == 0 {
			sh.println("No resources in state.")
			return
		}
		for _, id := range ids {
			sh.println("cluster_node.%s", id)
		}
	default:
		sh.println("Unknown terraform subcommand: '%s'", args[0])
		sh.println(terraformUsage)
	}
}
